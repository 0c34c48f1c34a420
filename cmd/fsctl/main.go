// fsctl is a one-shot command line front end for a single feature layer:
// query prints the matching features as GeoJSON, add/update read a GeoJSON
// feature from stdin, delete takes a comma-delimited id list.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terrabridge/feature-bridge/internal/config"
	"github.com/terrabridge/feature-bridge/internal/logger"
	"github.com/terrabridge/feature-bridge/pkg/featureservice"
	"github.com/terrabridge/feature-bridge/pkg/geo"
	"github.com/terrabridge/feature-bridge/pkg/httpclient"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fsctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		layerURL  = flag.String("url", "", "feature layer endpoint, e.g. https://host/arcgis/rest/services/x/FeatureServer/0")
		idField   = flag.String("id-field", "objectid", "attribute holding the feature identifier")
		token     = flag.String("token", "", "service token sent with every request")
		timeout   = flag.Int("timeout", 30, "http timeout in seconds")
		where     = flag.String("where", "1=1", "query where clause")
		outFields = flag.String("out-fields", "*", "query output fields")
		ids       = flag.String("ids", "", "comma-delimited object ids (delete)")
		logLevel  = flag.String("log-level", "error", "log level: debug, info, warn, error")
	)
	flag.Usage = usage
	flag.Parse()

	op := flag.Arg(0)
	if op == "" {
		usage()
		return fmt.Errorf("missing operation")
	}
	if *layerURL == "" {
		return fmt.Errorf("-url is required")
	}
	if *timeout <= 0 {
		return fmt.Errorf("-timeout must be positive")
	}

	log, err := logger.Init(&config.Config{LogLevel: *logLevel})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport := httpclient.NewFormTransport(time.Duration(*timeout) * time.Second)
	client := featureservice.NewClient(featureservice.Config{
		URL:     *layerURL,
		IDField: *idField,
		Token:   *token,
	}, transport, nil, log)

	switch op {
	case "query":
		return runQuery(ctx, client, *where, *outFields)
	case "add":
		return runEdit(ctx, client.Add)
	case "update":
		return runEdit(ctx, client.Update)
	case "delete":
		if *ids == "" {
			return fmt.Errorf("-ids is required for delete")
		}
		if err := client.Delete(ctx, *ids); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "deleted")
		return nil
	default:
		usage()
		return fmt.Errorf("unknown operation %q", op)
	}
}

func runQuery(ctx context.Context, client *featureservice.Client, where, outFields string) error {
	fc, err := client.Query(ctx, featureservice.Params{
		"where":     where,
		"outFields": outFields,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}

func runEdit(ctx context.Context, op func(context.Context, geo.Feature) error) error {
	var feature geo.Feature
	if err := json.NewDecoder(os.Stdin).Decode(&feature); err != nil {
		return fmt.Errorf("decode feature from stdin: %w", err)
	}
	if err := op(ctx, feature); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "ok")
	return nil
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "usage: fsctl -url <layer-url> [flags] <query|add|update|delete>")
	fmt.Fprintln(out, "  query   print matching features as a GeoJSON FeatureCollection")
	fmt.Fprintln(out, "  add     create the GeoJSON feature read from stdin")
	fmt.Fprintln(out, "  update  rewrite the GeoJSON feature read from stdin")
	fmt.Fprintln(out, "  delete  remove features named by -ids")
	flag.PrintDefaults()
}
