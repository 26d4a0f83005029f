package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hidject/internal/config"
	"hidject/internal/payload"
	"hidject/internal/task"
)

// buildTask turns enqueue arguments into a task.
func buildTask(kind task.Kind, args []string, layout string, count uint32) (task.Task, error) {
	joined := strings.Join(args, " ")
	switch kind {
	case task.KindString:
		return task.TypeString{Text: unescape(joined), Layout: layout}, nil
	case task.KindAltString:
		return task.TypeAltString{Text: unescape(joined)}, nil
	case task.KindPress:
		return task.PressKeys{Combo: joined}, nil
	case task.KindDelay:
		d, err := time.ParseDuration(joined)
		if err != nil {
			return nil, err
		}
		if d < 0 {
			return nil, fmt.Errorf("negative delay %s", d)
		}
		return task.Delay{Duration: d}, nil
	case task.KindMouse:
		capture, err := hex.DecodeString(strings.ReplaceAll(joined, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("capture must be hex: %w", err)
		}
		return task.MouseReport{Capture: capture, Count: count}, nil
	}
	return nil, fmt.Errorf("%w: %q", task.ErrUnknownKind, kind)
}

// unescape expands \n and \t so shell users can type Enter and Tab.
func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\\`, `\`).Replace(s)
}

// validateTask builds the task's payload for the configured target so bad
// input is rejected before it reaches the queue.
func validateTask(cfg config.Config, t task.Task) error {
	opts, err := cfg.InjectOptions()
	if err != nil {
		return err
	}
	target := payload.Target{USB: opts.Address.IsZero(), Variant: opts.WorkMode.Variant()}
	_, err = payload.ForTask(t, target, opts.Language)
	return err
}

func newEnqueueCmd() *cobra.Command {
	var (
		layout string
		count  uint32
	)
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Append a task to the script queue",
	}

	add := func(kind task.Kind, use, short string, args cobra.PositionalArgs) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := loadConfig()
				if err != nil {
					return err
				}
				t, err := buildTask(kind, args, layout, count)
				if err != nil {
					return err
				}
				if err := validateTask(mgr.Get(), t); err != nil {
					return err
				}

				st, err := openStore(mgr)
				if err != nil {
					return err
				}
				defer st.Close()

				entries, err := st.Append(t)
				if err != nil {
					return err
				}
				fmt.Printf("Queued #%d %s (%s)\n", entries[0].Seq, t, entries[0].ID)
				return nil
			},
		}
	}

	str := add(task.KindString, "string <text>", "Type text using the keyboard layout", cobra.MinimumNArgs(1))
	str.Flags().StringVar(&layout, "layout", "", "Keyboard layout (default: configured language)")
	mouse := add(task.KindMouse, "mouse <capture-hex>", "Replay a captured mouse frame", cobra.MinimumNArgs(1))
	mouse.Flags().Uint32Var(&count, "count", 1, "Number of repetitions")

	cmd.AddCommand(
		str,
		add(task.KindAltString, "altstring <text>", "Type text as Windows ALT+numpad codes", cobra.MinimumNArgs(1)),
		add(task.KindPress, "press <keys...>", "Press a key combination, e.g. CTRL ALT DELETE", cobra.MinimumNArgs(1)),
		add(task.KindDelay, "delay <duration>", "Wait, e.g. 500ms", cobra.ExactArgs(1)),
		mouse,
	)
	return cmd
}

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List queued tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(mgr)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No tasks queued")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tKIND\tTASK\tQUEUED")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Seq, e.Kind, e.Task, e.CreatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func newFlushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Remove every queued task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(mgr)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Flush(); err != nil {
				return err
			}
			fmt.Println("Task queue flushed")
			return nil
		},
	}
}
