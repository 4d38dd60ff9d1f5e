package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tbxark/stepform/assist"
	"github.com/tbxark/stepform/command"
	"github.com/tbxark/stepform/config"
	"github.com/tbxark/stepform/gateway"
	"github.com/tbxark/stepform/gateway/httpapi"
	"github.com/tbxark/stepform/gateway/sqlite"
	"github.com/tbxark/stepform/metrics"
	"github.com/tbxark/stepform/types"
	"github.com/tbxark/stepform/wizard"
)

const uploadBaseURL = "stepform://uploads"

func runCmd(app *config.App) *cobra.Command {
	var (
		remote      string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fill the configured wizard interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := gateway.WithDraftKey(cmd.Context(), app.DraftKey)

			def, err := config.LoadDefinition(app.Definition)
			if err != nil {
				return err
			}
			steps, err := def.Build()
			if err != nil {
				return fmt.Errorf("wizard definition %s: %w", app.Definition, err)
			}

			var gw wizard.Gateway
			if remote != "" {
				gw = httpapi.NewClient(remote)
			} else {
				store, err := sqlite.Open(app.Database, uploadBaseURL)
				if err != nil {
					return err
				}
				defer store.Close()
				gw = store
			}

			opts := []wizard.Option{wizard.WithLogger(slog.Default())}
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				observer, err := metrics.New(reg, "stepform")
				if err != nil {
					return err
				}
				opts = append(opts, wizard.WithObserver(observer))
				metricsCtx, stop := context.WithCancel(ctx)
				defer stop()
				go func() {
					if err := listen(metricsCtx, metricsAddr, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})); err != nil {
						slog.Warn("Metrics listener stopped", "error", err)
					}
				}()
			}

			session, err := wizard.NewSession(steps, gw, opts...)
			if err != nil {
				return err
			}
			defer session.Dispose()

			d := &driver{
				session: session,
				parser:  command.NewLocalParser(),
				out:     cmd.OutOrStdout(),
			}
			if app.LLM.Enabled() {
				if err := d.enableModel(ctx, app.LLM); err != nil {
					return err
				}
			}
			fmt.Fprintln(d.out, infoMsg("%s", def.Name))
			if err := session.Load(ctx); err != nil {
				return err
			}
			return d.loop(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "API base URL of a stepform server (e.g. http://host:8480/api) instead of the local database")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose session metrics on this address")
	return cmd
}

type driver struct {
	session *wizard.Session
	parser  command.Parser
	filler  *assist.Filler
	guide   *assist.Guide
	out     io.Writer
}

func (d *driver) enableModel(ctx context.Context, conf config.LLMConfig) error {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  conf.APIKey,
		Model:   conf.Model,
		BaseURL: conf.BaseURL,
	})
	if err != nil {
		return err
	}
	toolParser, err := command.NewToolParser(cm)
	if err != nil {
		return err
	}
	d.parser = command.NewFailbackParser(command.NewLocalParser(), toolParser)
	d.filler, err = assist.NewFiller(cm, assist.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	d.guide = assist.NewGuide(cm)
	return nil
}

func (d *driver) loop(ctx context.Context, in io.Reader) error {
	reader := bufio.NewReader(in)
	fmt.Fprintln(d.out, mutedStyle.Render(helpText))
	for {
		fmt.Fprintln(d.out, renderStep(d.session))
		fmt.Fprint(d.out, "> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(d.out, "\n"+infoMsg("input closed, saved steps are kept"))
				return nil
			}
			return err
		}
		done, err := d.handle(ctx, strings.TrimSpace(input))
		if err != nil {
			fmt.Fprintln(d.out, errorMsg("%v", err))
		}
		if done {
			return nil
		}
	}
}

func (d *driver) request(input string) *command.Request {
	state := d.session.State()
	steps := d.session.Steps()
	req := &command.Request{Input: input}
	for _, s := range steps {
		req.Steps = append(req.Steps, s.Label)
	}
	if state.Phase != types.PhaseIdle {
		req.Step = steps[state.Step].Label
		req.Fields = steps[state.Step].Keys()
	}
	return req
}

// handle executes one line of input and reports whether the wizard is over.
func (d *driver) handle(ctx context.Context, input string) (bool, error) {
	cmd, err := d.parser.Parse(ctx, d.request(input))
	if errors.Is(err, command.ErrUnrecognized) {
		cmd, err = command.Command{Kind: command.Edit}, nil
	}
	if err != nil {
		return false, err
	}

	switch cmd.Kind {
	case command.None:
		return false, nil
	case command.Advance:
		return d.advance(ctx)
	case command.Back:
		cancel, err := d.session.Back()
		if cancel {
			fmt.Fprintln(d.out, warnMsg("already on the first step, type cancel to leave"))
		}
		return false, err
	case command.Cancel:
		fmt.Fprintln(d.out, infoMsg("leaving, saved steps are kept"))
		return true, nil
	case command.Jump:
		return false, d.session.Jump(cmd.Step)
	case command.Review:
		fmt.Fprintln(d.out, renderSummary(d.session.Summary()))
		return false, nil
	case command.Upload:
		return false, d.stage(cmd.Key, cmd.Value)
	case command.Discard:
		return false, d.session.DiscardUpload(cmd.Key)
	case command.Edit:
		if cmd.Key != "" {
			return false, d.set(cmd.Key, cmd.Value)
		}
		if d.filler == nil {
			fmt.Fprintln(d.out, warnMsg("not understood; type key=value or configure llm.api_key"))
			return false, nil
		}
		res, err := d.filler.Fill(ctx, d.session, input)
		if err != nil {
			return false, err
		}
		if len(res.Changed) == 0 {
			fmt.Fprintln(d.out, warnMsg("nothing to fill from that"))
		}
		d.say(ctx)
		return false, nil
	}
	return false, fmt.Errorf("unhandled command %q", cmd.Kind)
}

func (d *driver) set(key, value string) error {
	if d.session.Snapshot().Kind(key) == types.KindList {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return d.session.Set(key, items)
	}
	return d.session.Set(key, value)
}

func (d *driver) stage(key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = d.session.Stage(key, types.File{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	})
	return err
}

func (d *driver) advance(ctx context.Context) (bool, error) {
	res, err := d.session.Advance(ctx)
	var stepErr *wizard.StepError
	switch {
	case errors.As(err, &stepErr):
		return false, nil
	case err != nil:
		return false, err
	case len(res.Errors) > 0:
		fmt.Fprintln(d.out, warnMsg("%d field(s) need attention", len(res.Errors)))
		d.say(ctx)
		return false, nil
	case res.Completed:
		fmt.Fprintln(d.out, renderSummary(d.session.Summary()))
		fmt.Fprintln(d.out, successMsg("submitted"))
		return true, nil
	default:
		fmt.Fprintln(d.out, successMsg("step %d saved", res.Step+1))
		return false, nil
	}
}

// say prints the model's hint for the active step when a model is configured.
func (d *driver) say(ctx context.Context) {
	if d.guide == nil {
		return
	}
	reply, err := d.guide.Next(ctx, d.session)
	if err != nil {
		slog.Debug("Guide failed", "error", err)
		return
	}
	fmt.Fprintln(d.out, accentStyle.Render("assistant: ")+reply)
}
