// Command summarize runs the batch scoring jobs of a tournament from the
// command line: recomputation, summaries and the playoff seeding order.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Dosada05/playoff-scoring/challenge"
	"github.com/Dosada05/playoff-scoring/config"
	"github.com/Dosada05/playoff-scoring/db"
	"github.com/Dosada05/playoff-scoring/repositories"
	"github.com/Dosada05/playoff-scoring/scoring"
	"github.com/Dosada05/playoff-scoring/services"
	"github.com/Dosada05/playoff-scoring/storage"
)

type app struct {
	summarizer services.SummarizerService
	rankings   services.RankingService
	close      func() error
}

func setup(c *cli.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	desc, err := challenge.Load(cfg.ChallengeFile)
	if err != nil {
		return nil, err
	}
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var archive services.SummaryArchiver
	if cfg.ArchiveEnabled() && !c.Bool("no-archive") {
		uploader, err := storage.NewCloudflareR2Uploader(c.Context, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			dbConn.Close()
			return nil, err
		}
		archive = storage.NewSummaryArchive(uploader)
	}

	performanceRepo := repositories.NewPostgresPerformanceRepository(dbConn)
	summaryRepo := repositories.NewPostgresSummaryRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)

	return &app{
		summarizer: services.NewSummarizerService(
			repositories.NewTransactor(dbConn, logger),
			performanceRepo,
			repositories.NewPostgresSubjectiveRepository(dbConn),
			summaryRepo,
			teamRepo,
			tournamentRepo,
			desc,
			archive,
			nil,
			logger,
		),
		rankings: services.NewRankingService(performanceRepo, summaryRepo, teamRepo, tournamentRepo, desc, logger),
		close:    dbConn.Close,
	}, nil
}

// withApp wires the services for one command and closes them afterwards.
func withApp(fn func(c *cli.Context, a *app) (interface{}, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		a, err := setup(c)
		if err != nil {
			return err
		}
		defer a.close()

		out, err := fn(c, a)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
}

func main() {
	tournamentFlag := &cli.IntFlag{Name: "tournament", Aliases: []string{"t"}, Usage: "tournament id", Required: true}

	cliApp := &cli.App{
		Name:  "summarize",
		Usage: "batch scoring jobs",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-archive", Usage: "do not upload summaries to object storage"},
		},
		Commands: []*cli.Command{
			{
				Name:  "recompute",
				Usage: "re-evaluate every stored score sheet",
				Flags: []cli.Flag{tournamentFlag},
				Action: withApp(func(c *cli.Context, a *app) (interface{}, error) {
					return a.summarizer.RecomputeAll(c.Context, c.Int("tournament"))
				}),
			},
			{
				Name:  "summarize",
				Usage: "recompute, then rewrite the standardized and overall scores",
				Flags: []cli.Flag{tournamentFlag},
				Action: withApp(func(c *cli.Context, a *app) (interface{}, error) {
					if _, err := a.summarizer.RecomputeAll(c.Context, c.Int("tournament")); err != nil {
						return nil, err
					}
					return a.summarizer.Summarize(c.Context, c.Int("tournament"))
				}),
			},
			{
				Name:  "seeding",
				Usage: "print the playoff seeding order",
				Flags: []cli.Flag{
					tournamentFlag,
					&cli.StringFlag{Name: "award-group", Usage: "only teams of this award group"},
					&cli.StringFlag{Name: "tiebreak", Value: string(scoring.TieBreakTeamNumber), Usage: "team or random"},
					&cli.Uint64Flag{Name: "seed", Usage: "seed of the random draw"},
				},
				Action: withApp(func(c *cli.Context, a *app) (interface{}, error) {
					tieBreak, err := scoring.ParseTieBreak(c.String("tiebreak"))
					if err != nil {
						return nil, err
					}
					seed := c.Uint64("seed")
					if tieBreak == scoring.TieBreakRandomDraw && !c.IsSet("seed") {
						seed = uint64(time.Now().UnixNano())
					}
					return a.rankings.GetPlayoffSeedingOrder(c.Context, c.Int("tournament"), c.String("award-group"), scoring.SeedingOptions{
						TieBreak: tieBreak,
						Seed:     seed,
					})
				}),
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(fmt.Errorf("summarize: %w", err))
	}
}
