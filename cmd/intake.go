package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/spigell/hiregate/internal/ai/gemini"
	"github.com/spigell/hiregate/internal/index"
	"github.com/spigell/hiregate/internal/intake"
	"github.com/spigell/hiregate/internal/logger"
	"github.com/spigell/hiregate/internal/profile"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var intakeCmd = &cobra.Command{
	Use:   "intake [manager|candidate]",
	Short: "Run a guided intake session and store the extracted profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runIntake(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(intakeCmd)

	intakeCmd.Flags().StringP("session", "s", "", "resume an interrupted session by id")
}

func runIntake(cmd *cobra.Command, who string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	kind, err := intakeKind(who)
	if err != nil {
		logger.Fatal("invalid intake target", zap.Error(err))
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building the ai oracle", zap.Error(err))
	}

	extractor := gemini.NewExtractor(generator, config.AI.Gemini.MaxLogLength, logger)
	flow := intake.NewFlow(generator, extractor, logger)

	sessions, err := intake.NewStore(filepath.Join(config.DataDir, "sessions"))
	if err != nil {
		logger.Fatal("opening the session store", zap.Error(err))
	}

	session, err := openSession(cmd, sessions, kind)
	if err != nil {
		logger.Fatal("opening the session", zap.Error(err))
	}

	logger.Info("starting the intake",
		zap.String("session_id", session.ID),
		zap.String("kind", string(kind)),
	)

	outcome, err := converse(ctx, flow, sessions, session, logger)
	if err != nil {
		logger.Fatal("intake failed", zap.Error(err))
	}

	if err := persistProfile(ctx, config, generator, outcome, logger); err != nil {
		logger.Fatal("storing the profile", zap.Error(err))
	}

	if err := sessions.Delete(session.ID); err != nil {
		logger.Warn("removing the finished session", zap.Error(err))
	}
}

func intakeKind(who string) (profile.Kind, error) {
	switch who {
	case "manager":
		return profile.KindRole, nil
	case "candidate":
		return profile.KindCandidate, nil
	default:
		return "", fmt.Errorf("expected manager or candidate, got %q", who)
	}
}

func openSession(cmd *cobra.Command, sessions *intake.Store, kind profile.Kind) (*intake.Session, error) {
	id := cmd.Flag("session").Value.String()
	if id == "" {
		return intake.NewSession(kind), nil
	}

	session, err := sessions.Load(id)
	if err != nil {
		return nil, fmt.Errorf("resume session %s: %w", id, err)
	}
	if session.Kind != kind {
		return nil, fmt.Errorf("session %s is a %s intake", id, session.Kind)
	}

	return session, nil
}

// converse runs the question loop until the profile is extracted. The
// session is saved after every turn so an interrupted or failed intake
// resumes where it stopped.
func converse(ctx context.Context, flow *intake.Flow, sessions *intake.Store, session *intake.Session, logger *zap.Logger) (*intake.Outcome, error) {
	var question string

	// A session interrupted during extraction has every answer already;
	// only the extraction pass needs to run again.
	if session.AwaitingExtract {
		outcome, err := flow.Finish(ctx, session)
		if err != nil {
			return nil, saveForResume(sessions, session, logger, err)
		}
		if outcome.Complete() {
			return outcome, nil
		}
		question = outcome.Question
	} else {
		opened, err := flow.Open(ctx, session)
		if err != nil {
			return nil, err
		}
		question = opened
	}

	for {
		if err := sessions.Save(session); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}

		fmt.Printf("\n%s\n", question)

		answerPrompt := promptui.Prompt{Label: "you"}
		answer, err := answerPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("session saved, resume with --session %s: %w", session.ID, err)
		}

		outcome, err := flow.Next(ctx, session, answer)
		if err != nil {
			// Answers are kept in the session, only the extraction
			// pass needs to run again.
			return nil, saveForResume(sessions, session, logger, err)
		}

		if outcome.Complete() {
			return outcome, nil
		}

		question = outcome.Question
	}
}

func saveForResume(sessions *intake.Store, session *intake.Session, logger *zap.Logger, err error) error {
	if saveErr := sessions.Save(session); saveErr != nil {
		logger.Warn("saving the session after a failure", zap.Error(saveErr))
	}

	return fmt.Errorf("session saved, resume with --session %s: %w", session.ID, err)
}

func persistProfile(ctx context.Context, config *Config, generator *gemini.Generator, outcome *intake.Outcome, logger *zap.Logger) error {
	storage, err := profile.NewStorage(config.DataDir)
	if err != nil {
		return fmt.Errorf("open profile storage: %w", err)
	}

	store, err := index.NewStore(index.Config{PersistPath: config.DataDir}, generator, logger)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}

	switch {
	case outcome.Role != nil:
		if err := storage.SaveRole(outcome.Role); err != nil {
			return err
		}
		if err := store.UpsertRole(ctx, outcome.Role); err != nil {
			return fmt.Errorf("index role: %w", err)
		}

		logger.Info("role profile stored",
			zap.String("role_id", outcome.Role.ID),
			zap.String("title", outcome.Role.Title),
		)
	case outcome.Candidate != nil:
		if err := storage.SaveCandidate(outcome.Candidate); err != nil {
			return err
		}
		if err := store.UpsertCandidate(ctx, outcome.Candidate); err != nil {
			return fmt.Errorf("index candidate: %w", err)
		}

		logger.Info("candidate profile stored",
			zap.String("candidate_id", outcome.Candidate.ID),
		)
	default:
		return errors.New("intake finished without a profile")
	}

	return nil
}
