// Example: pick the first search result and resolve its first playable item
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/alvarorichard/provedores/pkg/provedores"
)

func main() {
	ctx := context.Background()
	client := provedores.NewClient()

	results, err := client.Search(ctx, "Naruto", "AnimeFire")
	if err != nil {
		log.Fatal(err)
	}
	selected := results[0]
	fmt.Printf("Selected: %s [%s]\n", selected.Name, selected.APIName)

	title, err := client.Load(ctx, selected.APIName, selected.URL)
	if err != nil {
		log.Fatal(err)
	}

	data := title.DataURL
	if episodes := title.AllEpisodes(); len(episodes) > 0 {
		fmt.Printf("%d episodes, playing %s\n", len(episodes), episodes[0].GetDisplayName())
		data = episodes[0].Data
	}

	links, subtitles, err := client.Links(ctx, selected.APIName, data)
	if err != nil {
		log.Fatalf("Error resolving links: %v", err)
	}
	for _, l := range links {
		fmt.Printf("[%s] %s %s\n", l.Quality, l.Name, l.URL)
		if l.Referer != "" {
			fmt.Printf("   Referer: %s\n", l.Referer)
		}
	}
	for _, s := range subtitles {
		fmt.Printf("subtitle %s: %s\n", s.Lang, s.URL)
	}
}
