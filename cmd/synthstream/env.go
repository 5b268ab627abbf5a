package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "SYNTHSTREAM_"

func envString(name, def string) string {
	if v, ok := os.LookupEnv(envPrefix + name); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envInt(name string, def int) int {
	if n, err := strconv.Atoi(envString(name, "")); err == nil {
		return n
	}
	return def
}

func envFloat(name string, def float64) float64 {
	if f, err := strconv.ParseFloat(envString(name, ""), 64); err == nil {
		return f
	}
	return def
}

func envBool(name string, def bool) bool {
	if b, err := strconv.ParseBool(envString(name, "")); err == nil {
		return b
	}
	return def
}

func envDuration(name string, def time.Duration) time.Duration {
	if d, err := parseDuration(envString(name, "")); err == nil {
		return d
	}
	return def
}

// parseDuration accepts Go durations ("1m30s") and bare numbers of seconds.
func parseDuration(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// durationValue is a duration flag that also takes seconds.
type durationValue time.Duration

func (d *durationValue) String() string { return time.Duration(*d).String() }

func (d *durationValue) Set(v string) error {
	p, err := parseDuration(v)
	if err != nil {
		return err
	}
	*d = durationValue(p)
	return nil
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
