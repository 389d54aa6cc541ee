/*
Package wal implements CLI commands operating on the notification
write-ahead log.
*/
package wal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	goio "io"
	"os"
	"os/signal"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	ojson "github.com/nspcc-dev/go-ordered-json"
	"github.com/nspcc-dev/neo-exex/cli/options"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives/neo"
	"github.com/nspcc-dev/neo-exex/pkg/core/storage"
	"github.com/nspcc-dev/neo-exex/pkg/exex"
	"github.com/nspcc-dev/neo-exex/pkg/exex/bincompat"
	"github.com/nspcc-dev/neo-exex/pkg/exex/wal"
	"github.com/nspcc-dev/neo-exex/pkg/io"
	"github.com/nspcc-dev/neo-exex/pkg/services/metrics"
	"github.com/nspcc-dev/neo-exex/pkg/services/stream"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

const (
	formatJSON = "json"
	formatSpew = "spew"
)

type (
	notification = exex.Notification[neo.Primitives]
	neoWAL       = wal.WAL[neo.Primitives]
)

// dumpRecord is a single notification in the JSON dump.
type dumpRecord struct {
	ID           uint64                        `json:"id"`
	Notification exex.Envelope[neo.Primitives] `json:"notification"`
	Gas          []blockGas                    `json:"gas,omitempty"`
}

// blockGas holds the cumulative gas spent by transactions of a committed
// block, one decimal value per transaction.
type blockGas struct {
	Index      uint32   `json:"index"`
	Cumulative []string `json:"cumulative"`
}

// committedGas returns per-block cumulative gas of the chain committed by n.
func committedGas(n notification) []blockGas {
	c := n.CommittedChain()
	if c == nil {
		return nil
	}
	var res []blockGas
	for _, b := range c.Blocks() {
		rs := c.Receipts(b.GetIndex())
		if len(rs) == 0 {
			continue
		}
		g := blockGas{Index: b.GetIndex(), Cumulative: make([]string, 0, len(rs))}
		for _, tg := range primitives.GasSpentByTransactions(rs) {
			g.Cumulative = append(g.Cumulative, tg.Cumulative.ToBig().String())
		}
		res = append(res, g)
	}
	return res
}

// NewCommands returns 'wal' command.
func NewCommands() []cli.Command {
	outFlag := cli.StringFlag{
		Name:  "out, o",
		Usage: "output file (stdout if not set)",
	}
	return []cli.Command{{
		Name:  "wal",
		Usage: "Inspect and maintain notification write-ahead log",
		Subcommands: []cli.Command{
			{
				Name:      "dump",
				Usage:     "Dump all notifications",
				UsageText: "neo-exex wal dump [--config-file file] [--format json|spew] [--invert] [--out file]",
				Action:    dump,
				Flags: append([]cli.Flag{
					cli.StringFlag{
						Name:  "format, f",
						Value: formatJSON,
						Usage: "output format: " + formatJSON + " or " + formatSpew,
					},
					cli.BoolFlag{
						Name:  "invert, i",
						Usage: "print inversions of notifications",
					},
					outFlag,
				}, options.Common...),
			},
			{
				Name:      "stats",
				Usage:     "Print WAL summary",
				UsageText: "neo-exex wal stats [--config-file file]",
				Action:    stats,
				Flags:     options.Common,
			},
			{
				Name:      "finalize",
				Usage:     "Remove notifications at or below the given height",
				UsageText: "neo-exex wal finalize --height height [--config-file file]",
				Action:    finalize,
				Flags: append([]cli.Flag{
					cli.UintFlag{
						Name:  "height",
						Usage: "finalized block height",
					},
				}, options.Common...),
			},
			{
				Name:      "unwind",
				Usage:     "Remove notifications newer than the given ID and print their inversions",
				UsageText: "neo-exex wal unwind --after id [--config-file file]",
				Action:    unwind,
				Flags: append([]cli.Flag{
					cli.Uint64Flag{
						Name:  "after",
						Usage: "ID of the last notification to keep",
					},
				}, options.Common...),
			},
			{
				Name:      "export",
				Usage:     "Export notifications in binary form",
				UsageText: "neo-exex wal export --out file [--config-file file]",
				Action:    export,
				Flags:     append([]cli.Flag{outFlag}, options.Common...),
			},
			{
				Name:      "import",
				Usage:     "Import notifications from a binary file produced by export",
				UsageText: "neo-exex wal import --in file [--config-file file]",
				Action:    importNotifications,
				Flags: append([]cli.Flag{
					cli.StringFlag{
						Name:  "in",
						Usage: "input file",
					},
				}, options.Common...),
			},
			{
				Name:      "serve",
				Usage:     "Expose WAL metrics and stream notifications until interrupted",
				UsageText: "neo-exex wal serve --config-file file",
				Action:    serve,
				Flags:     options.Common,
			},
		},
	}}
}

// openWAL loads configuration, sets up logging and opens WAL. The returned
// function should be called to release resources.
func openWAL(ctx *cli.Context) (*neoWAL, *zap.Logger, func(), error) {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return nil, nil, nil, cli.NewExitError(err, 1)
	}
	log, _, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return nil, nil, nil, cli.NewExitError(err, 1)
	}
	store, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		_ = log.Sync()
		return nil, nil, nil, cli.NewExitError(fmt.Errorf("could not open store: %w", err), 1)
	}
	w, err := wal.New[neo.Primitives](store, cfg.ApplicationConfiguration.WAL, log)
	if err != nil {
		_ = store.Close()
		_ = log.Sync()
		return nil, nil, nil, cli.NewExitError(fmt.Errorf("could not open WAL: %w", err), 1)
	}
	return w, log, func() {
		if err := w.Close(); err != nil {
			log.Error("failed to close WAL", zap.Error(err))
		}
		_ = log.Sync()
	}, nil
}

// openOutput returns the file specified by the --out flag or the app writer.
func openOutput(ctx *cli.Context) (*os.File, error) {
	out := ctx.String("out")
	if out == "" {
		return nil, nil
	}
	return os.Create(out)
}

// marshalIndent pretty-prints v as JSON keeping the field order.
func marshalIndent(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	d := ojson.NewDecoder(bytes.NewReader(raw))
	d.UseOrderedObject()
	d.UseNumber()
	var obj interface{}
	if err := d.Decode(&obj); err != nil {
		return nil, err
	}
	return ojson.MarshalIndent(obj, "", "  ")
}

func dump(ctx *cli.Context) error {
	if err := cmdargsNone(ctx); err != nil {
		return err
	}
	format := ctx.String("format")
	if format != formatJSON && format != formatSpew {
		return cli.NewExitError(fmt.Errorf("unknown format: %s", format), 1)
	}
	w, _, closer, err := openWAL(ctx)
	if err != nil {
		return err
	}
	defer closer()

	var records []dumpRecord
	err = w.Iterate(func(id uint64, n notification) bool {
		if ctx.Bool("invert") {
			n = n.Inverted()
		}
		records = append(records, dumpRecord{
			ID:           id,
			Notification: exex.Envelope[neo.Primitives]{Notification: n},
			Gas:          committedGas(n),
		})
		return true
	})
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	f, err := openOutput(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	writer := ctx.App.Writer
	if f != nil {
		writer = f
	}
	err = writeDump(writer, format, records)
	if f != nil {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close output: %w", cerr)
		}
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func writeDump(writer goio.Writer, format string, records []dumpRecord) error {
	if format == formatSpew {
		cs := spew.ConfigState{
			Indent:                  "  ",
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		}
		for _, r := range records {
			if _, err := fmt.Fprintf(writer, "#%d %s\n", r.ID, r.Notification.Notification.Kind()); err != nil {
				return err
			}
			cs.Fdump(writer, r.Notification.Notification)
		}
		return nil
	}
	if records == nil {
		records = []dumpRecord{}
	}
	data, err := marshalIndent(records)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(writer, string(data))
	return err
}

func stats(ctx *cli.Context) error {
	if err := cmdargsNone(ctx); err != nil {
		return err
	}
	w, _, closer, err := openWAL(ctx)
	if err != nil {
		return err
	}
	defer closer()
	data, err := marshalIndent(w.Stats())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, string(data))
	return nil
}

func finalize(ctx *cli.Context) error {
	if err := cmdargsNone(ctx); err != nil {
		return err
	}
	if !ctx.IsSet("height") {
		return cli.NewExitError(errors.New("height is required"), 1)
	}
	height := ctx.Uint("height")
	if uint64(height) > uint64(^uint32(0)) {
		return cli.NewExitError(fmt.Errorf("height is too big: %d", height), 1)
	}
	w, _, closer, err := openWAL(ctx)
	if err != nil {
		return err
	}
	defer closer()
	removed, err := w.Finalize(uint32(height))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Removed %d notifications, %d left\n", removed, w.Len())
	return nil
}

func unwind(ctx *cli.Context) error {
	if err := cmdargsNone(ctx); err != nil {
		return err
	}
	if !ctx.IsSet("after") {
		return cli.NewExitError(errors.New("after is required"), 1)
	}
	w, _, closer, err := openWAL(ctx)
	if err != nil {
		return err
	}
	defer closer()
	inverted, err := w.Unwind(ctx.Uint64("after"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	envs := make([]exex.Envelope[neo.Primitives], 0, len(inverted))
	for _, n := range inverted {
		envs = append(envs, exex.Envelope[neo.Primitives]{Notification: n})
	}
	data, err := marshalIndent(envs)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, string(data))
	return nil
}

func export(ctx *cli.Context) error {
	if err := cmdargsNone(ctx); err != nil {
		return err
	}
	if ctx.String("out") == "" {
		return cli.NewExitError(errors.New("output file is required"), 1)
	}
	w, log, closer, err := openWAL(ctx)
	if err != nil {
		return err
	}
	defer closer()

	var ns []notification
	err = w.Iterate(func(_ uint64, n notification) bool {
		ns = append(ns, n)
		return true
	})
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	buf := io.NewBufBinWriter()
	buf.WriteVarUint(uint64(len(ns)))
	for _, n := range ns {
		bincompat.As[neo.Primitives]{}.EncodeBinaryAs(buf.BinWriter, n)
	}
	if buf.Err != nil {
		return cli.NewExitError(fmt.Errorf("failed to encode notifications: %w", buf.Err), 1)
	}
	if err := os.WriteFile(ctx.String("out"), buf.Bytes(), 0644); err != nil {
		return cli.NewExitError(err, 1)
	}
	log.Info("notifications exported", zap.Int("count", len(ns)))
	return nil
}

func importNotifications(ctx *cli.Context) error {
	if err := cmdargsNone(ctx); err != nil {
		return err
	}
	in := ctx.String("in")
	if in == "" {
		return cli.NewExitError(errors.New("input file is required"), 1)
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	r := io.NewBinReaderFromBuf(data)
	count := r.ReadLen(1)
	ns := make([]notification, 0, count)
	for i := 0; i < count && r.Err == nil; i++ {
		n := bincompat.As[neo.Primitives]{}.DecodeBinaryAs(r)
		if r.Err == nil {
			ns = append(ns, n)
		}
	}
	if r.Err == nil && r.Len() != 0 {
		r.Err = fmt.Errorf("%w: %d bytes", bincompat.ErrTrailingData, r.Len())
	}
	if r.Err != nil {
		return cli.NewExitError(fmt.Errorf("failed to decode notifications: %w", r.Err), 1)
	}

	w, log, closer, err := openWAL(ctx)
	if err != nil {
		return err
	}
	defer closer()
	for i, n := range ns {
		id, err := w.Commit(n)
		if err != nil {
			return cli.NewExitError(fmt.Errorf("failed to import notification #%d: %w", i, err), 1)
		}
		log.Debug("notification imported", zap.Uint64("id", id))
	}
	fmt.Fprintf(ctx.App.Writer, "Imported %d notifications\n", len(ns))
	return nil
}

func serve(ctx *cli.Context) error {
	if err := cmdargsNone(ctx); err != nil {
		return err
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if !cfg.ApplicationConfiguration.Prometheus.Enabled && !cfg.ApplicationConfiguration.Stream.Enabled {
		return cli.NewExitError(errors.New("neither Prometheus nor Stream is enabled in the configuration"), 1)
	}
	w, log, closer, err := openWAL(ctx)
	if err != nil {
		return err
	}
	defer closer()

	prometheus := metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, log)
	if err := prometheus.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("failed to start Prometheus service: %w", err), 1)
	}
	defer prometheus.ShutDown()
	streamer := stream.New[neo.Primitives](cfg.ApplicationConfiguration.Stream, w, log)
	if err := streamer.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("failed to start Stream service: %w", err), 1)
	}
	defer streamer.ShutDown()
	log.Info("serving WAL", zap.Int("notifications", w.Len()))

	grace := make(chan os.Signal, 1)
	signal.Notify(grace, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(grace)
	<-grace
	return nil
}

func cmdargsNone(ctx *cli.Context) error {
	if ctx.NArg() != 0 {
		return cli.NewExitError(fmt.Errorf("unexpected arguments: %v", ctx.Args()), 1)
	}
	return nil
}
