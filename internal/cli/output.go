package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alvarorichard/provedores/pkg/provedores"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0E9F6E")).
			Bold(true)

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA726"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8A8A8A"))

	qualityStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#5A56E0")).
			Padding(0, 1)
)

func (o *options) render(w io.Writer, v interface{}, text func(io.Writer)) error {
	if o.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func printProviders(w io.Writer, providers []provedores.ProviderInfo) {
	for _, p := range providers {
		types := make([]string, 0, len(p.Types))
		for _, t := range p.Types {
			types = append(types, string(t))
		}
		home := ""
		if p.HasMainPage {
			home = dimStyle.Render(" [home]")
		}
		fmt.Fprintf(w, "%s %s %s%s\n", titleStyle.Render(p.Name), dimStyle.Render(p.URL), strings.Join(types, ","), home)
	}
}

func printExtractors(w io.Writer, names []string) {
	for _, name := range names {
		fmt.Fprintln(w, sourceStyle.Render(name))
	}
}

func printResults(w io.Writer, results []provedores.SearchResult) {
	for i, r := range results {
		fmt.Fprintf(w, "%3d. %s %s\n", i+1, sourceStyle.Render("["+r.APIName+"]"), r.GetDisplayName())
		fmt.Fprintf(w, "     %s\n", dimStyle.Render(r.URL))
	}
}

func printHome(w io.Writer, home *provedores.HomePage) {
	for _, section := range home.Items {
		fmt.Fprintln(w, titleStyle.Render(section.Name))
		printResults(w, section.List)
		fmt.Fprintln(w)
	}
	if home.HasNext {
		fmt.Fprintln(w, dimStyle.Render("more pages available (--page)"))
	}
}

func printTitle(w io.Writer, title *provedores.Title) {
	fmt.Fprintln(w, titleStyle.Render(title.Name))
	var meta []string
	if title.Year > 0 {
		meta = append(meta, fmt.Sprint(title.Year))
	}
	for _, s := range []string{title.GetRuntimeDisplay(), title.GetRatingDisplay(), title.GetGenresDisplay()} {
		if s != "" {
			meta = append(meta, s)
		}
	}
	meta = append(meta, string(title.Type))
	fmt.Fprintln(w, dimStyle.Render(strings.Join(meta, " · ")))
	if title.Plot != "" {
		fmt.Fprintln(w, title.Plot)
	}
	if title.DataURL != "" {
		fmt.Fprintf(w, "data: %s\n", title.DataURL)
	}
	printEpisodes(w, "Episódios", title.Episodes)
	printEpisodes(w, "Episódios dublados", title.DubEpisodes)
}

func printEpisodes(w io.Writer, heading string, episodes []provedores.Episode) {
	if len(episodes) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s (%d)\n", titleStyle.Render(heading), len(episodes))
	for _, ep := range episodes {
		fmt.Fprintf(w, "  %s\n     %s\n", ep.GetDisplayName(), dimStyle.Render(ep.Data))
	}
}

func printLinks(w io.Writer, links []provedores.Link, subtitles []provedores.Subtitle) {
	for _, l := range links {
		fmt.Fprintf(w, "%s %s %s\n", qualityStyle.Render(l.Quality.String()), l.Name, sourceStyle.Render(string(l.Type)))
		fmt.Fprintf(w, "  %s\n", l.URL)
		if l.Referer != "" {
			fmt.Fprintf(w, "  %s\n", dimStyle.Render("Referer: "+l.Referer))
		}
		for k, v := range l.Headers {
			fmt.Fprintf(w, "  %s\n", dimStyle.Render(k+": "+v))
		}
	}
	for _, s := range subtitles {
		fmt.Fprintf(w, "%s %s\n", sourceStyle.Render("legenda "+s.Lang), s.URL)
	}
}
