package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"gomc/io"
	"gomc/physics"
	"gomc/sim"
	"gomc/tally"
	"gomc/transport"
)

// FileGroup contains utility files for logging and writing profiles to.
type FileGroup struct {
	log, prof *os.File
}

// Close closes the files inside FileGroup.
func (fg *FileGroup) Close() {
	if fg.log != nil {
		err := fg.log.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}

	if fg.prof != nil {
		pprof.StopCPUProfile()
		err := fg.prof.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}
}

func main() {
	var (
		configPath, modelPath string
		pprofPath             string
		exampleConfig         bool
	)

	flag.StringVar(&configPath, "Config", "",
		"Configuration file with the [Run] section.")
	flag.StringVar(&modelPath, "Model", "",
		"Model description file: surfaces, cells, lattices, materials.")
	flag.StringVar(&pprofPath, "PProf", "",
		"Location to write profile to. Default is no profiling.")
	flag.BoolVar(&exampleConfig, "ExampleConfig", false,
		"Prints an example [Run] configuration file to stdout.")
	flag.Parse()

	if exampleConfig {
		fmt.Println(io.ExampleRunFile)
		return
	}
	if configPath == "" || modelPath == "" {
		log.Fatalf("Usage: $ %s -Config run.txt -Model model.yaml", os.Args[0])
	}

	con, err := io.ReadRunConfig(configPath)
	if err != nil {
		log.Fatal(err.Error())
	}

	fg := new(FileGroup)
	defer fg.Close()
	if con.LogFile != "" {
		fg.log, err = os.Create(con.LogFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		log.SetOutput(fg.log)
	}
	if pprofPath != "" {
		fg.prof, err = os.Create(pprofPath)
		if err != nil {
			log.Fatal(err.Error())
		}
		pprof.StartCPUProfile(fg.prof)
	}

	model, mats, err := io.LoadModel(modelPath)
	if err != nil {
		log.Fatal(err.Error())
	}
	sampler, err := physics.NewMultigroupSampler(mats, con.SurvivalBiasing)
	if err != nil {
		log.Fatal(err.Error())
	}
	set, err := con.Settings()
	if err != nil {
		log.Fatal(err.Error())
	}

	runner := &sim.Runner{
		Model:   model,
		Sampler: sampler,
		Set:     set,
		Tallies: []*tally.Tally{
			tally.New("flux", transport.ScoreTrack),
			tally.New("collision", transport.ScoreCollision),
		},
	}

	log.Printf("Running %d cycles (%d inactive) of %d particles",
		set.InactiveCycles+set.ActiveCycles, set.InactiveCycles,
		set.Particles)

	start := time.Now()
	res, err := runner.Run()
	if err != nil {
		log.Fatal(err.Error())
	}
	elapsed := time.Since(start)

	log.Printf("k-effective = %.5f +/- %.5f", res.KEff, res.KEffStd)
	log.Printf("%d histories in %v (%.0f/sec)",
		res.Histories, elapsed.Round(time.Millisecond),
		float64(res.Histories)/elapsed.Seconds())
	log.Printf("transport: %v  bank sync: %v",
		res.TransportTime.Round(time.Millisecond),
		res.SyncTime.Round(time.Millisecond))
	if res.Lost > 0 {
		log.Printf("%d lost particles", res.Lost)
	}
	if len(res.Entropy) > 0 {
		log.Printf("final source entropy: %.4f bits",
			res.Entropy[len(res.Entropy)-1])
	}

	if con.TallyFile != "" {
		if err := tally.WriteCSV(con.TallyFile, runner.Tallies...); err != nil {
			log.Fatal(err.Error())
		}
		log.Printf("Wrote tallies to %s", con.TallyFile)
	}
}
