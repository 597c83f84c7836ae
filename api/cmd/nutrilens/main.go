package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"nutrilens/api/internal/analyzer/types"
	"nutrilens/api/internal/client"
	"nutrilens/api/internal/config"
	"nutrilens/api/internal/profile"
	"nutrilens/api/internal/render"
	"nutrilens/api/internal/report"
	"nutrilens/api/internal/util"
)

type options struct {
	in, out, api string
	asJSON       bool
	timeout      time.Duration
	prof         profile.Profile
}

func main() {
	log.SetFlags(0)
	cfg := config.Load()
	opts, err := parseFlags(os.Args[1:], cfg.APIURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := run(context.Background(), opts, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func parseFlags(args []string, defaultAPI string) (options, error) {
	var (
		o              options
		goal, activity string
		weight, height float64
		age            int
	)
	def := profile.Default()
	fs := flag.NewFlagSet("nutrilens", flag.ContinueOnError)
	fs.StringVar(&o.in, "in", "", "meal photo (jpg, png or webp)")
	fs.StringVar(&o.out, "out", "", "write the annotated image here (format by extension)")
	fs.StringVar(&o.api, "api", defaultAPI, "analysis API base URL")
	fs.BoolVar(&o.asJSON, "json", false, "print the raw analysis JSON instead of the report")
	fs.DurationVar(&o.timeout, "timeout", 3*time.Minute, "request timeout")
	fs.IntVar(&age, "age", def.Age, "age, years")
	fs.Float64Var(&weight, "weight", def.WeightKg, "weight, kg")
	fs.Float64Var(&height, "height", def.HeightCm, "height, cm")
	fs.StringVar(&goal, "goal", string(def.Goal), "maintain | cut | bulk")
	fs.StringVar(&activity, "activity", string(def.Activity), "sedentary | light | moderate | active | athlete")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.in == "" && fs.NArg() > 0 {
		o.in = fs.Arg(0)
	}
	if o.in == "" {
		return o, fmt.Errorf("usage: nutrilens -in meal.jpg [-out annotated.jpg]")
	}

	g, err := profile.ParseGoal(goal)
	if err != nil {
		return o, err
	}
	a, err := profile.ParseActivity(activity)
	if err != nil {
		return o, err
	}
	o.prof = profile.Profile{Age: age, WeightKg: weight, HeightCm: height, Goal: g, Activity: a}
	return o, o.prof.Validate()
}

func run(ctx context.Context, o options, stdout io.Writer) error {
	data, err := os.ReadFile(o.in)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	c := client.New(o.api)
	res, err := c.Analyze(ctx, data, filepath.Base(o.in), util.PickMIME("", o.in, data))
	if err != nil {
		return errors.New(client.Describe(err))
	}

	if o.out != "" {
		if err := writeAnnotated(o.out, data, res); err != nil {
			return fmt.Errorf("annotate: %w", err)
		}
	}
	if o.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err = fmt.Fprintf(stdout, "%s\n\n🎯 Daily target: %d kcal, per meal %.0f kcal\n",
		report.Summary(res, o.prof.MealTarget()), o.prof.TargetCalories(), o.prof.MealTarget())
	return err
}

func writeAnnotated(path string, data []byte, res types.AnalysisResult) error {
	img, _, err := render.Decode(data)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.Encode(f, render.Annotate(img, res.Foods), filepath.Ext(path), 90); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
