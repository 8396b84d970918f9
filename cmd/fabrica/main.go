package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Brandon-Online01/w-f-sub001/internal/api"
	"github.com/Brandon-Online01/w-f-sub001/internal/config"
	"github.com/Brandon-Online01/w-f-sub001/internal/highlights"
	"github.com/Brandon-Online01/w-f-sub001/internal/query"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globals struct {
	token   string
	verbose bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "fabrica",
		Short:         "Ferramentas de operação do painel da fábrica",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := zerolog.InfoLevel
			if g.verbose {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
		},
	}
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv("FABRICA_TOKEN"), "token da API (padrão: $FABRICA_TOKEN)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "logs de depuração")

	root.AddCommand(newLoginCmd())
	root.AddCommand(newHighlightsCmd(g))
	root.AddCommand(newQueryCmd(g))
	return root
}

func loadClient() (*api.Client, *config.UpstreamConfig, error) {
	upstream, err := config.LoadUpstream()
	if err != nil {
		return nil, nil, err
	}
	client, err := api.New(api.Config{
		BaseURL:  upstream.APIBaseURL,
		FilesURL: upstream.FilesURL,
		Timeout:  upstream.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, upstream, nil
}

func requireToken(g *globals) (string, error) {
	token := strings.TrimSpace(g.token)
	if token == "" {
		return "", errors.New("informe --token ou FABRICA_TOKEN")
	}
	return token, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLoginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Autentica no backend e imprime o token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := loadClient()
			if err != nil {
				return err
			}
			if password == "" {
				password = os.Getenv("FABRICA_PASSWORD")
			}

			ctx, cancel := signalContext()
			defer cancel()

			resp, err := client.SignIn(ctx, username, password)
			if err != nil {
				var authErr *api.AuthError
				if errors.As(err, &authErr) {
					return fmt.Errorf("login recusado: %s", authErr.Message)
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"message": resp.Message,
				"token":   resp.Token,
				"user":    resp.User,
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "usuário")
	cmd.Flags().StringVarP(&password, "password", "p", "", "senha (padrão: $FABRICA_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newHighlightsCmd(g *globals) *cobra.Command {
	var (
		factory string
		once    bool
	)

	cmd := &cobra.Command{
		Use:   "highlights",
		Short: "Acompanha o socket de destaques e imprime cada snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := requireToken(g)
			if err != nil {
				return err
			}
			client, upstream, err := loadClient()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			if factory != "" {
				raw, err := client.Highlights(ctx, token, factory)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			}

			endpoint, err := highlights.EndpointURL(upstream.SocketURL)
			if err != nil {
				return err
			}
			stream := highlights.NewStream(highlights.Options{
				Endpoint:         endpoint,
				Token:            token,
				HandshakeTimeout: upstream.Stream.HandshakeTimeout,
				Reconnect:        upstream.Stream.Reconnect,
				MaxRetries:       upstream.Stream.MaxRetries,
			})
			defer stream.Close()

			runErr := make(chan error, 1)
			go func() { runErr <- stream.Run(ctx) }()

			for {
				select {
				case <-ctx.Done():
					stream.Close()
					<-runErr
					return nil
				case err := <-runErr:
					return err
				case st := <-stream.Updates():
					log.Debug().Bool("connected", st.Connected).Bool("stale", st.Stale).Msg("highlights: estado")
					if !st.HasData() {
						continue
					}
					if err := printJSON(cmd.OutOrStdout(), highlights.NewView(st)); err != nil {
						return err
					}
					if once {
						stream.Close()
						<-runErr
						return nil
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&factory, "factory", "", "busca também o resumo REST da fábrica antes do stream")
	cmd.Flags().BoolVar(&once, "once", false, "sai após o primeiro snapshot")
	return cmd
}

func newQueryCmd(g *globals) *cobra.Command {
	var (
		factory  string
		interval time.Duration
		watch    bool
	)

	cmd := &cobra.Command{
		Use:       "query <resource>",
		Short:     "Consulta um recurso do dashboard ou do inventário",
		Args:      cobra.ExactArgs(1),
		ValidArgs: append(api.DashboardResources(), api.RecordKinds()...),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := requireToken(g)
			if err != nil {
				return err
			}
			client, upstream, err := loadClient()
			if err != nil {
				return err
			}

			resource := strings.ToLower(args[0])
			if _, ok := api.Lookup(resource); !ok {
				return fmt.Errorf("%w: %s", api.ErrUnknownResource, resource)
			}

			ctx, cancel := signalContext()
			defer cancel()

			cache := query.New(query.Options{Interval: interval, FetchTimeout: upstream.Timeout})
			sub, err := cache.Subscribe(ctx, query.Key{Resource: resource, Factory: factory}, func(ctx context.Context) (json.RawMessage, error) {
				return client.Fetch(ctx, token, resource, factory)
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			if !watch {
				st, err := sub.Settled(ctx)
				if err != nil {
					return err
				}
				if st.Err != nil {
					return st.Err
				}
				return printJSON(cmd.OutOrStdout(), query.Render(st))
			}

			for st := range sub.Updates() {
				if st.Err != nil {
					log.Warn().Err(st.Err).Str("resource", resource).Msg("query: busca falhou")
				}
				if err := printJSON(cmd.OutOrStdout(), query.Render(st)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&factory, "factory", "", "fábrica consultada")
	cmd.Flags().DurationVar(&interval, "interval", query.DefaultInterval, "intervalo de refetch no modo --watch")
	cmd.Flags().BoolVar(&watch, "watch", false, "continua consultando até Ctrl+C")
	return cmd
}
