package cli

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/alvarorichard/provedores/internal/util"
	"github.com/alvarorichard/provedores/pkg/provedores"
)

type linksOutput struct {
	Links     []provedores.Link     `json:"links"`
	Subtitles []provedores.Subtitle `json:"subtitles"`
}

func newListCommand(o *options) *cobra.Command {
	var extractors bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the loaded providers, or the video hosts with --extractors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if extractors {
				names := o.client.Extractors()
				return o.render(cmd.OutOrStdout(), names, func(w io.Writer) {
					printExtractors(w, names)
				})
			}
			providers := o.client.Providers()
			return o.render(cmd.OutOrStdout(), providers, func(w io.Writer) {
				printProviders(w, providers)
			})
		},
	}
	cmd.Flags().BoolVar(&extractors, "extractors", false, "list the registered video host extractors")
	return cmd
}

func newHomeCommand(o *options) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "home <provider>",
		Short: "Show a provider's main page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := o.client.MainPage(cmd.Context(), args[0], page)
			if err != nil {
				return err
			}
			return o.render(cmd.OutOrStdout(), home, func(w io.Writer) {
				printHome(w, home)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func newSearchCommand(o *options) *cobra.Command {
	var (
		provider string
		pick     bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search every provider, or one with --provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			results, err := o.client.Search(cmd.Context(), query, provider)
			if err != nil {
				return err
			}
			util.Info("Search finished", "query", query, "results", len(results))
			if pick {
				return o.pickAndPlay(cmd, results)
			}
			return o.render(cmd.OutOrStdout(), results, func(w io.Writer) {
				printResults(w, results)
			})
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "search only this provider")
	cmd.Flags().BoolVar(&pick, "pick", false, "choose a result interactively and resolve its links")
	return cmd
}

func newLoadCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "load <provider> <url>",
		Short: "Show the details and episodes of a title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, err := o.client.Load(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return o.render(cmd.OutOrStdout(), title, func(w io.Writer) {
				printTitle(w, title)
			})
		},
	}
}

func newLinksCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "links <provider> <data>",
		Short: "Resolve a movie data URL or an episode's data into playable links",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			links, subtitles, err := o.client.Links(cmd.Context(), args[0], args[1])
			if err != nil {
				return errors.Wrapf(err, "no links for %s", args[1])
			}
			return o.render(cmd.OutOrStdout(), linksOutput{Links: links, Subtitles: subtitles}, func(w io.Writer) {
				printLinks(w, links, subtitles)
			})
		},
	}
}
