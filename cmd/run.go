package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/spigell/hiregate/internal/ai/gemini"
	"github.com/spigell/hiregate/internal/gate"
	"github.com/spigell/hiregate/internal/index"
	"github.com/spigell/hiregate/internal/ledger"
	"github.com/spigell/hiregate/internal/logger"
	"github.com/spigell/hiregate/internal/matching"
	"github.com/spigell/hiregate/internal/notify"
	"github.com/spigell/hiregate/internal/profile"
	"github.com/spigell/hiregate/internal/scoring"
	"github.com/spigell/hiregate/internal/secrets"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptApproveAll    = "Approve and release all"
	PromptNo            = "No"
	PromptBack          = "back"
	PromptReview        = "Review matches one by one"
	PromptMatchesToFile = "Dump matches to file"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptApproveAll, PromptNo, PromptReview, PromptMatchesToFile},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a matching round for a role and release approved matches",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("role", "r", "", "role id to match candidates against")
	runCmd.Flags().BoolP("auto-approve", "y", false, "release every match above the threshold without confirmation")
	runCmd.Flags().Bool("full-scan", false, "score every screened candidate instead of the similarity pool")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the hiregate", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	roleID := cmd.Flag("role").Value.String()
	if roleID == "" {
		logger.Fatal("role id is required", zap.String("hint", "pass --role with the id printed by the manager intake"))
	}

	storage, err := profile.NewStorage(config.DataDir)
	if err != nil {
		logger.Fatal("opening profile storage", zap.Error(err))
	}

	role, err := storage.LoadRole(roleID)
	if err != nil {
		logger.Fatal("loading the role", zap.String("role_id", roleID), zap.Error(err))
	}

	candidates, err := storage.LoadCandidates()
	if err != nil {
		logger.Fatal("loading candidates", zap.Error(err))
	}

	logger.Info("loading candidates", zap.Int("count", candidates.Len()))

	if candidates.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no candidates found"))
		return
	}

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building the ai oracle", zap.Error(err))
	}

	deps, err := prepareRound(config, generator, role, logger)
	if err != nil {
		logger.Fatal("preparing the matching round", zap.Error(err))
	}

	steps := prepareSteps(cmd)

	roundCfg := &matching.Config{
		PoolSize:    config.Matching.PoolSize,
		MinOverall:  config.Matching.MinOverall,
		Concurrency: config.Matching.Concurrency,
	}

	left, matches, retry, err := matching.Run(ctx, roundCfg, deps, steps, candidates)
	if err != nil {
		if errors.Is(err, index.ErrEmptyPool) {
			logger.Info("exiting", zap.String("reason", "no screened candidates to match"))
			return
		}
		logger.Fatal("matching round failed", zap.Error(err))
	}

	if len(retry) > 0 {
		logger.Warn("some candidates could not be scored; run again to retry them",
			zap.Strings("candidate_ids", retry),
		)
	}

	if left.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no matches left after the round"))
		return
	}

	// Best match first; ties stay deterministic by candidate id.
	sort.SliceStable(left.Items, func(i, j int) bool {
		mi, mj := matches[left.Items[i].ID], matches[left.Items[j].ID]
		if mi.Scores.Overall != mj.Scores.Overall {
			return mi.Scores.Overall > mj.Scores.Overall
		}
		return left.Items[i].ID < left.Items[j].ID
	})

	controller := prepareController(config, deps.Ledger, logger)

	action := PromptApproveAll
	for {
		var err error
		if cmd.Flag("auto-approve").Value.String() == "false" {
			_, action, err = prompt.Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}

		logger.Info("current list of matches", zap.Int("count", left.Len()))

		if err := handleAction(ctx, action, controller, logger, role, left, matches); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}

		if cmd.Flag("auto-approve").Value.String() == "true" {
			return
		}
	}
}

func handleAction(ctx context.Context, action string, controller *gate.Controller, logger *zap.Logger, role *profile.Role, candidates *profile.Candidates, matches map[string]*profile.Match) error {
	switch action {
	case PromptApproveAll:
		return approve(ctx, controller, *logger, role, candidates)
	case PromptNo:
		logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return errExit
	case PromptReview:
		return review(ctx, controller, logger, role, candidates, matches)
	case PromptMatchesToFile:
		filename, err := dumpMatches(matches)
		if err != nil {
			return fmt.Errorf("dump matches to file: %w", err)
		}
		logger.Info("dumping matches to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// review walks the matches one by one so a match can be rejected without
// blocking the rest of the round.
func review(ctx context.Context, controller *gate.Controller, logger *zap.Logger, role *profile.Role, candidates *profile.Candidates, matches map[string]*profile.Match) error {
	for {
		items := make([]string, 0, candidates.Len())
		for _, cand := range candidates.Items {
			match := matches[cand.ID]
			label := fmt.Sprintf("%s / overall %.0f / %s",
				cand.ID, match.Scores.Overall*100, match.Category,
			)
			items = append(items, label)
		}

		matchPrompt := promptui.Select{
			Label: "Choose a match and press ENTER",
			Items: append(items, PromptBack),
		}

		_, selected, err := matchPrompt.Run()
		if err != nil {
			return err
		}

		if selected == PromptBack {
			return nil
		}

		candID := strings.Split(selected, " ")[0]
		cand := candidates.FindByID(candID)
		if cand == nil {
			return fmt.Errorf("there is no such candidate id %s", candID)
		}

		match := matches[candID]
		fmt.Printf("\n%s\n\n", match.Reasoning)

		verdictPrompt := promptui.Select{
			Label: "Verdict",
			Items: []string{"approve", "reject", PromptBack},
		}

		_, verdict, err := verdictPrompt.Run()
		if err != nil {
			return err
		}

		if err := decide(ctx, controller, logger, role, cand, verdict); err != nil {
			return err
		}
	}
}

// decide applies a single review verdict. An illegal transition, such as
// rejecting a match released earlier in the same loop, is reported and
// the review goes on.
func decide(ctx context.Context, controller *gate.Controller, logger *zap.Logger, role *profile.Role, cand *profile.Candidate, verdict string) error {
	var err error
	switch verdict {
	case "approve":
		err = approve(ctx, controller, *logger, role, &profile.Candidates{Items: []*profile.Candidate{cand}})
	case "reject":
		_, err = controller.Reject(role.ID, cand.ID)
		if err == nil {
			logger.Info("match rejected",
				zap.String("role_id", role.ID),
				zap.String("candidate_id", cand.ID),
			)
		}
	default:
		return nil
	}

	if errors.Is(err, gate.ErrIllegalTransition) {
		logger.Warn("verdict refused",
			zap.String("candidate_id", cand.ID),
			zap.Error(err),
		)
		return nil
	}

	return err
}

func approve(ctx context.Context, controller *gate.Controller, logger zap.Logger, role *profile.Role, candidates *profile.Candidates) error {
	for _, cand := range candidates.Items {
		match, err := controller.Approve(ctx, role, cand)
		if err != nil {
			return err
		}

		logger.Info("match released",
			zap.String("role_id", role.ID),
			zap.String("candidate_id", cand.ID),
			zap.Float64("overall", match.Scores.Overall),
		)
	}

	logger.Info("successfully released matches", zap.Int("count", candidates.Len()))
	return nil
}

func dumpMatches(matches map[string]*profile.Match) (string, error) {
	list := make([]*profile.Match, 0, len(matches))
	for _, match := range matches {
		list = append(list, match)
	}

	return profile.DumpMatchesToTmpFile(list)
}

func prepareRound(config *Config, generator *gemini.Generator, role *profile.Role, logger *zap.Logger) (matching.Deps, error) {
	store, err := index.NewStore(index.Config{PersistPath: config.DataDir}, generator, logger)
	if err != nil {
		return matching.Deps{}, fmt.Errorf("open vector store: %w", err)
	}

	judgeLogger := logger.With(zap.String("provider", "gemini"))
	judge := gemini.NewJudge(generator, config.AI.Gemini.MaxLogLength, judgeLogger)

	scorer, err := scoring.NewScorer(scoring.Config{
		Weights:        config.Matching.weights(),
		CategoryMargin: config.Matching.Margin,
	}, generator, judge, logger)
	if err != nil {
		return matching.Deps{}, fmt.Errorf("build scorer: %w", err)
	}

	l, err := ledger.New(config.Matching.weights())
	if err != nil {
		return matching.Deps{}, fmt.Errorf("build ledger: %w", err)
	}

	return matching.Deps{
		Role:     role,
		Selector: index.NewSelector(store, logger),
		Scorer:   scorer,
		Ledger:   l,
		Logger:   logger,
	}, nil
}

func prepareSteps(cmd *cobra.Command) []matching.Step {
	steps := []matching.Step{
		matching.NewScreened(),
		matching.NewPool(),
		matching.NewScorer(),
		matching.NewMinOverall(),
	}

	if cmd != nil && strings.EqualFold(cmd.Flag("full-scan").Value.String(), "true") {
		matching.DisableByName(steps, "pool", "full scan requested via flag")
	}

	return steps
}

func prepareController(config *Config, l *ledger.Ledger, logger *zap.Logger) *gate.Controller {
	notifier := prepareNotifier(config, logger)

	return gate.NewController(l, notifier, logger)
}

func prepareNotifier(config *Config, logger *zap.Logger) gate.Notifier {
	if config.Notify == nil || config.Notify.WebhookURL == "" {
		return notify.NewLogNotifier(logger)
	}

	token := ""
	if config.Notify.TokenFile != "" {
		loaded, err := secrets.Load(secrets.Source{
			Name: "notify webhook token",
			File: config.Notify.TokenFile,
		})
		if err != nil {
			logger.Warn("loading the webhook token; sending without auth", zap.Error(err))
		} else {
			token = loaded
		}
	}

	return notify.NewWebhookNotifier(config.Notify.WebhookURL, token, logger)
}
