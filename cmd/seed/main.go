// Command seed writes a fake NDJSON feed for local development.
package main

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/faireye-hive/hive-cache/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numAuthors := flag.Int("authors", defaults.Authors, "Number of distinct authors")
	numPosts := flag.Int("posts", defaults.Posts, "Number of posts to generate")
	farm := flag.Int("farm", 0, "Extra short replies from one prolific farm account")
	seedValue := flag.Int64("seed", 0, "Random seed (0 = random)")
	hours := flag.Int("hours", defaults.MaxHours, "Spread creation times over the last N hours")
	spam := flag.Float64("spam", defaults.SpamRatio, "Share of spam posts")
	replies := flag.Float64("replies", defaults.ReplyRatio, "Share of replies")
	copies := flag.Float64("copies", defaults.CopyRatio, "Share of posts copying an earlier body")
	out := flag.String("out", "", "Output file (default stdout)")
	flag.Parse()

	f := seed.NewFactory(seed.Options{
		Authors:    *numAuthors,
		Posts:      *numPosts,
		Seed:       *seedValue,
		MaxHours:   *hours,
		SpamRatio:  *spam,
		ReplyRatio: *replies,
		CopyRatio:  *copies,
	})
	records := f.Generate()
	if *farm > 0 {
		records = append(records, f.Farm(*farm)...)
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		file, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *out, err)
		}
		defer file.Close()
		w = file
	}

	if err := seed.WriteNDJSON(w, records); err != nil {
		log.Fatalf("Failed to write feed: %v", err)
	}
	log.Printf("Wrote %d posts from %d authors", len(records), *numAuthors)
}
