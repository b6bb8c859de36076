package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/menta2k/geostamp/internal/config"
	"github.com/menta2k/geostamp/internal/utils"
	"github.com/menta2k/geostamp/pkg/annotate"
	"github.com/menta2k/geostamp/pkg/locate"
	"github.com/menta2k/geostamp/pkg/pipeline"
	"github.com/menta2k/geostamp/pkg/store"
	"github.com/menta2k/geostamp/pkg/types"
)

var stampCmd = &cobra.Command{
	Use:   "stamp",
	Short: "Stamp a photo or a directory of photos",
	Long: `Stamp decodes each input, un-mirrors front camera captures, draws the
caption panel and map inset, and writes the result next to the input (or into
--out) with the configured suffix.

Without --lat/--lng the coordinates line and the map are omitted; without
--address either, the caption reads "Location unavailable".`,
	RunE: runStamp,
}

func init() {
	rootCmd.AddCommand(stampCmd)

	stampCmd.Flags().StringP("in", "i", "", "input photo or directory (required)")
	stampCmd.Flags().StringP("out", "o", "", "output file, or directory when --in is a directory")
	stampCmd.Flags().String("address", "", "caption text, usually the street address")
	stampCmd.Flags().Float64("lat", 0, "latitude in degrees")
	stampCmd.Flags().Float64("lng", 0, "longitude in degrees")
	stampCmd.Flags().Bool("front", false, "input was taken with the front camera")
	stampCmd.Flags().String("timestamp", "", "capture time, RFC 3339 (default: now)")
	stampCmd.Flags().Bool("no-map", false, "do not draw the map inset")
	stampCmd.Flags().Bool("store", false, "also persist into output.dir under a capture name")

	stampCmd.Flags().StringP("format", "f", "jpg", "output format (jpg|png|webp)")
	stampCmd.Flags().IntP("quality", "q", 100, "JPEG/WebP quality (1-100)")
	stampCmd.Flags().String("map-provider", "none", "map source (none|static|tiles)")
	stampCmd.Flags().String("map-url", "", "map URL template")
	stampCmd.Flags().String("api-key", "", "map API key")
	stampCmd.Flags().Int("zoom", 16, "map zoom level")

	viper.BindPFlag("output.format", stampCmd.Flags().Lookup("format"))
	viper.BindPFlag("output.quality", stampCmd.Flags().Lookup("quality"))
	viper.BindPFlag("map.provider", stampCmd.Flags().Lookup("map-provider"))
	viper.BindPFlag("map.url", stampCmd.Flags().Lookup("map-url"))
	viper.BindPFlag("map.api_key", stampCmd.Flags().Lookup("api-key"))
	viper.BindPFlag("map.zoom", stampCmd.Flags().Lookup("zoom"))
}

func runStamp(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	in, _ := flags.GetString("in")
	if in == "" {
		return fmt.Errorf("an input is required (use --in)")
	}
	out, _ := flags.GetString("out")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	session, err := sessionFromFlags(cmd)
	if err != nil {
		return err
	}

	p := newPipeline(cfg)

	inputs := []string{in}
	outDir := ""
	if utils.DirExists(in) {
		if inputs, err = utils.ListImageFiles(in); err != nil {
			return fmt.Errorf("failed to list %s: %w", in, err)
		}
		if len(inputs) == 0 {
			return fmt.Errorf("no photos found in %s", in)
		}
		outDir, out = out, ""
	}

	format := string(cfg.OutputOptions().Format)
	for _, input := range inputs {
		target := out
		if target == "" {
			target = utils.OutputPath(input, outDir, cfg.Output.Suffix, format)
		}
		if err := stampFile(cmd.Context(), p, input, target, session); err != nil {
			return err
		}
	}
	return nil
}

func stampFile(ctx context.Context, p *pipeline.Pipeline, in, out string, session pipeline.Session) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", in, err)
	}

	res, err := p.Process(ctx, data, session)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	if err := utils.EnsureDir(filepath.Dir(out)); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(out, res.Encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	log.Printf("%s -> %s (%s, %s)", in, out, res.Annotation.Outcome, utils.FormatFileSize(int64(len(res.Encoded))))
	if res.Annotation.Reason != "" {
		log.Printf("  %s", res.Annotation.Reason)
	}
	if res.Path != "" {
		log.Printf("  stored as %s", res.Path)
	}
	return nil
}

func sessionFromFlags(cmd *cobra.Command) (pipeline.Session, error) {
	flags := cmd.Flags()
	var session pipeline.Session

	if front, _ := flags.GetBool("front"); front {
		session.Facing = types.FacingFront
	} else {
		session.Facing = types.FacingBack
	}
	session.SkipMap, _ = flags.GetBool("no-map")
	session.Store, _ = flags.GetBool("store")

	if ts, _ := flags.GetString("timestamp"); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return session, fmt.Errorf("invalid --timestamp: %w", err)
		}
		session.Time = t
	}

	address, _ := flags.GetString("address")
	switch {
	case flags.Changed("lat") && flags.Changed("lng"):
		lat, _ := flags.GetFloat64("lat")
		lng, _ := flags.GetFloat64("lng")
		p := types.GeoPoint{Lat: lat, Lng: lng}
		if err := p.Validate(); err != nil {
			return session, err
		}
		session.Locator = locate.NewStatic(address, p)
	case flags.Changed("lat") || flags.Changed("lng"):
		return session, fmt.Errorf("--lat and --lng must be given together")
	case address != "":
		session.Locator = &locate.Static{Location: types.Location{Address: address}}
	default:
		session.Locator = &locate.Static{Err: locate.ErrUnavailable}
	}
	return session, nil
}

// newPipeline wires the configured collaborators
func newPipeline(cfg *config.Config) *pipeline.Pipeline {
	logger := log.Default()
	return pipeline.New(
		annotate.NewWithConfig(cfg.AnnotateConfig()),
		pipeline.WithMapProvider(cfg.MapProvider(logger)),
		pipeline.WithOutput(cfg.OutputOptions()),
		pipeline.WithStore(store.NewFileStore(cfg.Output.Dir, cfg.Output.Quality)),
		pipeline.WithLocator(&locate.Static{Err: locate.ErrUnavailable}),
		pipeline.WithLogger(logger),
	)
}
