package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/jakobtroidl/dvid-point-cloud/client"
	"github.com/jakobtroidl/dvid-point-cloud/dvid"
	"github.com/jakobtroidl/dvid-point-cloud/sample"
)

const helpMessage = `

Sample a uniform point cloud from a body stored in a DVID labelmap instance

Usage: dvid-point-cloud [options] <server> <uuid> <instance name> <label>

Example: dvid-point-cloud -density 0.001 emdata3:8900 662ed segmentation 1539193374

      -density     (float)   Fraction of the body's voxels to sample in (0, 1].  Default is 0.01.
      -output      (string)  File for CSV "x,y,z" points.  Default is points-<label>.csv
      -config      (string)  TOML file with density default and log settings.
      -gzip        (flag)    Request gzip compression of sparse volume payloads.
      -verbose     (flag)    Run in verbose mode.
  -h, -help        (flag)    Show help message

`

type tomlConfig struct {
	Density float64
	Log     dvid.LogConfig `toml:"log"`
}

var (
	showHelp   = flag.Bool("help", false, "Show help message")
	runVerbose = flag.Bool("verbose", false, "Run in verbose mode")
	useGzip    = flag.Bool("gzip", false, "Request gzip compression of sparse volume payloads")
	density    = flag.Float64("density", 0, "Fraction of the body's voxels to sample in (0, 1]")
	outfile    = flag.String("output", "", `File for CSV "x,y,z" points.  Default is points-<label>.csv`)
	configfile = flag.String("config", "", "TOML file with density default and log settings")
)

var usage = func() {
	fmt.Printf(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 4 || *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	args := flag.Args()
	server := args[0]
	uuid := args[1]
	instance := args[2]
	label, err := strconv.ParseUint(args[3], 10, 64)
	if err != nil {
		fmt.Printf("can't parse label %q: %v\n", args[3], err)
		os.Exit(1)
	}

	config := tomlConfig{Density: 0.01}
	if *configfile != "" {
		if _, err := toml.DecodeFile(*configfile, &config); err != nil {
			fmt.Printf("can't read config file %q: %v\n", *configfile, err)
			os.Exit(1)
		}
	}
	if *density != 0 {
		config.Density = *density
	}
	config.Log.SetLogger()
	defer dvid.Shutdown()
	if *runVerbose {
		dvid.SetLogMode(dvid.DebugMode)
	}

	var opts []client.Option
	if *useGzip {
		opts = append(opts, client.WithGzip())
	}
	c := client.New(server, opts...)

	timedLog := dvid.NewTimeLog()
	points, err := sample.Uniform(context.Background(), c, uuid, instance, label, config.Density)
	if err != nil {
		dvid.Criticalf("sampling label %d: %v\n", label, err)
		os.Exit(1)
	}
	timedLog.Infof("sampled %s points of label %d at density %g", humanize.Comma(int64(len(points))), label, config.Density)

	filename := *outfile
	if filename == "" {
		filename = fmt.Sprintf("points-%d.csv", label)
	}
	f, err := os.Create(filename)
	if err != nil {
		dvid.Criticalf("can't create output file %q: %v\n", filename, err)
		os.Exit(1)
	}
	defer f.Close()
	for _, pt := range points {
		if _, err := fmt.Fprintf(f, "%d,%d,%d\n", pt[0], pt[1], pt[2]); err != nil {
			dvid.Criticalf("can't write point to %q: %v\n", filename, err)
			os.Exit(1)
		}
	}
	dvid.Infof("wrote %s points to %s\n", humanize.Comma(int64(len(points))), filename)
}
