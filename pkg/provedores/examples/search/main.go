// Example: search every provider and print the results
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/alvarorichard/provedores/pkg/provedores"
)

func main() {
	query := "Cidade de Deus"
	if len(os.Args) > 1 {
		query = strings.Join(os.Args[1:], " ")
	}

	client := provedores.NewClient()

	fmt.Printf("Searching for '%s'...\n", query)
	results, err := client.Search(context.Background(), query, "")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\nFound %d results:\n\n", len(results))
	for i, r := range results {
		fmt.Printf("%d. %s\n", i+1, r.GetDisplayName())
		fmt.Printf("   Provider: %s\n", r.APIName)
		fmt.Printf("   URL: %s\n", r.URL)
		fmt.Println()
	}
}
