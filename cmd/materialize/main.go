package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/waste-api/internal/config"
	"github.com/Brownie44l1/waste-api/internal/dataset"
)

func main() {
	datasetID := flag.String("dataset", "garythung/trashnet", "dataset id")
	datasetConfig := flag.String("config", "default", "dataset config name")
	split := flag.String("split", "train", "split to materialize")
	outDir := flag.String("out", "", "output dir (default <project root>/data)")
	endpoint := flag.String("endpoint", dataset.DefaultEndpoint, "datasets-server base url")
	pageSize := flag.Int("page-size", dataset.MaxPageSize, "rows per request")
	limit := flag.Int("limit", 0, "stop after this many items (0 = whole split)")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(level)

	if *outDir == "" {
		root, err := config.ProjectRoot()
		if err != nil {
			logrus.Fatal(err)
		}
		*outDir = filepath.Join(root, "data")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := &dataset.Materializer{
		Source:   dataset.NewClient(*endpoint, *datasetID, *datasetConfig),
		BaseDir:  *outDir,
		Split:    *split,
		PageSize: *pageSize,
		Limit:    *limit,
		Log:      logrus.WithField("dataset", *datasetID),
	}

	sum, err := m.Run(ctx)
	if err != nil {
		logrus.WithField("written", sum.Written).Fatalf("materialize failed: %v", err)
	}
}
