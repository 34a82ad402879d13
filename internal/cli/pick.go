package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/alvarorichard/provedores/internal/util"
	"github.com/alvarorichard/provedores/pkg/provedores"
)

// pickAndPlay walks search result -> title -> episode -> links interactively
func (o *options) pickAndPlay(cmd *cobra.Command, results []provedores.SearchResult) error {
	ctx := cmd.Context()

	selected, err := pickResult(results)
	if err != nil {
		return err
	}
	util.Info("Selected", "title", selected.Name, "provider", selected.APIName)

	var (
		title   *provedores.Title
		loadErr error
	)
	if err := spinner.New().
		Title("Carregando " + selected.Name + "...").
		Type(spinner.Dots).
		Context(ctx).
		Action(func() {
			title, loadErr = o.client.Load(ctx, selected.APIName, selected.URL)
		}).
		Run(); err != nil {
		return err
	}
	if loadErr != nil {
		return loadErr
	}

	data := title.DataURL
	if episodes, err := chooseEpisodeList(title); err != nil {
		return err
	} else if len(episodes) > 0 {
		ep, err := pickEpisode(episodes)
		if err != nil {
			return err
		}
		data = ep.Data
	}
	if data == "" {
		return errors.Wrapf(util.ErrNotFound, "%s has nothing to play", title.Name)
	}

	var (
		links     []provedores.Link
		subtitles []provedores.Subtitle
		linksErr  error
	)
	if err := spinner.New().
		Title("Resolvendo links...").
		Type(spinner.Dots).
		Context(ctx).
		Action(func() {
			links, subtitles, linksErr = o.client.Links(ctx, selected.APIName, data)
		}).
		Run(); err != nil {
		return err
	}
	if linksErr != nil {
		return linksErr
	}
	util.Info("Links resolved", "links", len(links), "subtitles", len(subtitles))
	return o.render(cmd.OutOrStdout(), linksOutput{Links: links, Subtitles: subtitles}, func(w io.Writer) {
		printLinks(w, links, subtitles)
	})
}

func pickResult(results []provedores.SearchResult) (provedores.SearchResult, error) {
	if len(results) == 1 {
		return results[0], nil
	}
	idx, err := fuzzyfinder.Find(
		results,
		func(i int) string {
			return fmt.Sprintf("[%s] %s", results[i].APIName, results[i].GetDisplayName())
		},
		fuzzyfinder.WithPromptString("Selecione o título: "),
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i >= 0 && i < len(results) {
				return fmt.Sprintf("URL: %s\nTipo: %s\nPoster: %s", results[i].URL, results[i].Type, results[i].PosterURL)
			}
			return ""
		}),
	)
	if err != nil {
		return provedores.SearchResult{}, errors.Wrap(err, "selection cancelled")
	}
	return results[idx], nil
}

// chooseEpisodeList asks between subbed and dubbed lists when a title has both
func chooseEpisodeList(title *provedores.Title) ([]provedores.Episode, error) {
	if len(title.DubEpisodes) == 0 {
		return title.Episodes, nil
	}
	if len(title.Episodes) == 0 {
		return title.DubEpisodes, nil
	}

	var choice string
	menu := huh.NewSelect[string]().
		Title(title.Name).
		Description("Escolha o áudio:").
		Options(
			huh.NewOption(fmt.Sprintf("Legendado (%d episódios)", len(title.Episodes)), "sub"),
			huh.NewOption(fmt.Sprintf("Dublado (%d episódios)", len(title.DubEpisodes)), "dub"),
		).
		Value(&choice)
	if err := menu.Run(); err != nil {
		return nil, errors.Wrap(err, "audio selection cancelled")
	}
	if choice == "dub" {
		return title.DubEpisodes, nil
	}
	return title.Episodes, nil
}

func pickEpisode(episodes []provedores.Episode) (provedores.Episode, error) {
	idx, err := fuzzyfinder.Find(
		episodes,
		func(i int) string { return episodes[i].GetDisplayName() },
		fuzzyfinder.WithPromptString("Selecione o episódio: "),
	)
	if err != nil {
		return provedores.Episode{}, errors.Wrap(err, "episode selection cancelled")
	}
	return episodes[idx], nil
}
