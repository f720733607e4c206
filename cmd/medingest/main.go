// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return buildApp(&runtime{})
}

func buildApp(rt *runtime) *cli.App {
	return &cli.App{
		Name:  "medingest",
		Usage: "Resumable bulk ingestion of medical literature",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				EnvVars: []string{"MEDINGEST_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write JSON logs to this file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
			},
		},
		Before: rt.setup,
		After:  rt.teardown,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Start an ingestion job and follow it; interrupt pauses, a second interrupt exits",
				Action: rt.runCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Source kind (pubmed, file)",
						Value: "pubmed",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Human readable job name",
					},
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Source query; overrides the per-subject queries",
					},
					&cli.StringSliceFlag{
						Name:    "subject",
						Aliases: []string{"s"},
						Usage:   "Subject area to ingest (repeatable)",
					},
					&cli.IntFlag{
						Name:  "max-docs",
						Usage: "Maximum records fetched per subject area (0 = source default)",
					},
					&cli.TimestampFlag{
						Name:   "from",
						Usage:  "Earliest publication date (YYYY-MM-DD)",
						Layout: "2006-01-02",
					},
					&cli.TimestampFlag{
						Name:   "to",
						Usage:  "Latest publication date (YYYY-MM-DD)",
						Layout: "2006-01-02",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Reject records scoring below this quality (0-1)",
					},
					&cli.StringFlag{
						Name:  "path",
						Usage: "Input file for the file source",
					},
				}, followFlags()...),
			},
			{
				Name:   "resume",
				Usage:  "Resume a paused job from its last checkpoint",
				Action: rt.resumeCommand,
				Flags:  append([]cli.Flag{jobFlag()}, followFlags()...),
			},
			{
				Name:   "cancel",
				Usage:  "Cancel a running or paused job",
				Action: rt.cancelCommand,
				Flags:  []cli.Flag{jobFlag()},
			},
			{
				Name:   "resubmit",
				Usage:  "Continue a failed job as a new job from its last checkpoint",
				Action: rt.resubmitCommand,
				Flags:  append([]cli.Flag{jobFlag()}, followFlags()...),
			},
			{
				Name:    "status",
				Aliases: []string{"jobs"},
				Usage:   "Show one job as JSON, or list every job",
				Action:  rt.statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "job",
						Aliases: []string{"j"},
						Usage:   "Job ID; omit to list all jobs",
					},
				},
			},
			{
				Name:   "partitions",
				Usage:  "List subject partitions and their record counts",
				Action: rt.partitionsCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Replay stored records to the vector index",
				Action: rt.reindexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records per index signal",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 500,
					},
					&cli.StringFlag{
						Name:  "partition",
						Usage: "Only replay records in this subject area",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum publish attempts per signal",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: time.Second,
					},
				},
			},
		},
	}
}

func jobFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "job",
		Aliases:  []string{"j"},
		Usage:    "Job ID",
		Required: true,
	}
}

func followFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "detach",
			Usage: "Return once the job is started instead of following it",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "How often to print progress while following",
			Value: 2 * time.Second,
		},
	}
}
