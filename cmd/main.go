package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/richard-senior/mvreg/internal/logger"
	"github.com/richard-senior/mvreg/pkg/server"
	"github.com/richard-senior/mvreg/pkg/util/mvreg"
)

const usage = `usage: mvreg [command] [flags]

commands:
  evaluate   train on the training set, score on the test set and write the chart (default)
  predict    predict from market value using a model trained on the training set
  import     load a csv split into the sqlite database
  runs       list stored evaluation runs
  serve      run as an MCP server on stdin/stdout

Configuration is read from the YAML file named by MVREG_CONFIG and from MVREG_* variables.
`

func main() {
	logger.SetShowDateTime(true)
	// stdout is for command output
	logger.SetWriters(os.Stderr, os.Stderr)
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Fatal("mvreg failed:", err)
	}
}

// run dispatches a command line, writing command output to stdout
func run(args []string, stdout io.Writer) error {
	cfg, err := mvreg.LoadConfig()
	if err != nil {
		return err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logger.SetLogFile(cfg.LogFile)

	command := "evaluate"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}
	logger.Debug("Running command", command, strings.Join(args, " "))

	switch command {
	case "evaluate":
		return evaluate(cfg, args, stdout)
	case "predict":
		return predict(cfg, args, stdout)
	case "import":
		return importSplit(cfg, args, stdout)
	case "runs":
		return listRuns(cfg, args, stdout)
	case "serve":
		return serve(cfg)
	case "help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	return fmt.Errorf("unknown command %q\n%s", command, usage)
}

func newFlagSet(name string, stdout io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stdout)
	return fs
}

func evaluate(cfg *mvreg.MvregConfig, args []string, stdout io.Writer) error {
	fs := newFlagSet("evaluate", stdout)
	train := fs.String("train", "", "training csv (default: configured train_path)")
	test := fs.String("test", "", "test csv (default: configured test_path)")
	fs.StringVar(&cfg.ChartPath, "chart", cfg.ChartPath, "where to write the svg chart")
	fs.Float64Var(&cfg.Confidence, "confidence", cfg.Confidence, "confidence band level")
	fs.Float64Var(&cfg.PredictionBand, "prediction-band", cfg.PredictionBand, "prediction band level")
	fs.StringVar(&cfg.MetricsPath, "metrics", cfg.MetricsPath, "prometheus textfile to write")
	fs.StringVar(&cfg.DbPath, "db", cfg.DbPath, "sqlite database for run history")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *train != "" || *test != "" {
		cfg.Source = mvreg.SourceCSV
		if *train != "" {
			cfg.TrainPath = *train
		}
		if *test != "" {
			cfg.TestPath = *test
		}
	}

	ev, err := mvreg.RunEvaluation(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSLOPE\tINTERCEPT\tR²\tTEST LOSS")
	for _, m := range ev.Report.Models {
		fmt.Fprintf(w, "%s\t%.6g\t%.6g\t%.2f\t%.2f\n", m.Key, m.Slope, m.Intercept, m.RSquared, m.TestLoss)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "train rows: %d, test rows: %d\n", ev.Report.TrainRows, ev.Report.TestRows)
	if ev.ChartPath != "" {
		fmt.Fprintf(stdout, "chart: %s\n", ev.ChartPath)
	}
	if ev.RunID != "" {
		fmt.Fprintf(stdout, "run: %s\n", ev.RunID)
	}
	return nil
}

func predict(cfg *mvreg.MvregConfig, args []string, stdout io.Writer) error {
	fs := newFlagSet("predict", stdout)
	x := fs.String("x", "", "market value to predict from; further values may follow as arguments")
	model := fs.String("model", string(mvreg.AvgPts), fmt.Sprintf("one of %v", mvreg.ModelKeys()))
	train := fs.String("train", "", "training csv (default: configured train_path)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *train != "" {
		cfg.Source = mvreg.SourceCSV
		cfg.TrainPath = *train
	}

	raw := fs.Args()
	if *x != "" {
		raw = append([]string{*x}, raw...)
	}
	if len(raw) == 0 {
		return fmt.Errorf("predict needs at least one market value, eg -x 2500000")
	}
	xs := make([]float64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("market value %q is not a number", s)
		}
		xs[i] = v
	}

	key, err := mvreg.ParseModelKey(*model)
	if err != nil {
		return err
	}
	data, err := mvreg.LoadDataset(cfg, mvreg.SplitTrain)
	if err != nil {
		return err
	}
	agent, err := mvreg.NewLinearAgentFromConfig(cfg)
	if err != nil {
		return err
	}
	if err := agent.Train(data); err != nil {
		return err
	}
	ys, err := agent.PredictWith(key, xs)
	if err != nil {
		return err
	}
	for i := range xs {
		fmt.Fprintf(stdout, "%g\t%.4f\n", xs[i], ys[i])
	}
	return nil
}

func importSplit(cfg *mvreg.MvregConfig, args []string, stdout io.Writer) error {
	fs := newFlagSet("import", stdout)
	split := fs.String("split", mvreg.SplitTrain, "train or test")
	fs.StringVar(&cfg.DbPath, "db", cfg.DbPath, "sqlite database to import into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("import needs exactly one csv file")
	}
	if cfg.DbPath == "" {
		return fmt.Errorf("import needs a database, set -db or db_path")
	}
	if *split != mvreg.SplitTrain && *split != mvreg.SplitTest {
		return fmt.Errorf("split must be %s or %s", mvreg.SplitTrain, mvreg.SplitTest)
	}

	ds, err := mvreg.LoadCSV(fs.Arg(0))
	if err != nil {
		return err
	}
	store, err := mvreg.OpenStore(cfg.DbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.ImportSeasons(ds, *split); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "imported %d %s rows into %s\n", ds.Len(), *split, cfg.DbPath)
	return nil
}

func listRuns(cfg *mvreg.MvregConfig, args []string, stdout io.Writer) error {
	fs := newFlagSet("runs", stdout)
	limit := fs.Int("limit", 20, "maximum rows to show")
	fs.StringVar(&cfg.DbPath, "db", cfg.DbPath, "sqlite database holding the run history")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.DbPath == "" {
		return fmt.Errorf("runs needs a database, set -db or db_path")
	}

	store, err := mvreg.OpenStore(cfg.DbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	runs, err := store.RecentRuns(*limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tRUN\tMODEL\tR²\tTEST LOSS\tTRAIN\tTEST")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%d\t%d\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.RunID[:min(8, len(r.RunID))], r.ModelKey,
			r.RSquared, r.TestLoss, r.TrainRows, r.TestRows)
	}
	return w.Flush()
}

// serve runs the MCP server; stdout carries JSON-RPC so logs go to file
func serve(cfg *mvreg.MvregConfig) error {
	if err := logger.SetLogOutput('f'); err != nil {
		return err
	}
	mvreg.UpdateConfig(cfg)
	logger.Info("Starting mvreg MCP server", cfg.LogFile)

	s := server.GetInstance()
	if err := s.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("MCP server shutting down")
	return nil
}
