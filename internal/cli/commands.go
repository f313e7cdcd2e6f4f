package cli

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline/feedback"
	"hiring-pipeline/internal/pipeline/stage"
	"hiring-pipeline/internal/pipeline/store"
)

// Globals are the persistent flags every command sees.
type Globals struct {
	ConfigPath string
	JSON       bool
}

// Opener builds the session a command runs against. The returned func
// releases whatever the session holds open.
type Opener func(ctx context.Context, g Globals) (*Session, func(), error)

type app struct {
	open    Opener
	globals Globals
	jobID   int64
}

// NewRootCommand assembles pipelinectl.
func NewRootCommand(open Opener, version string) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:   "pipelinectl",
		Short: "Drive candidates through the hiring pipeline",
		Long: `pipelinectl moves candidates between hiring stages, books interviewers
for interview rounds and records interview feedback.

Examples:
  pipelinectl roster --job 7
  pipelinectl filter --job 7 round2
  pipelinectl move --job 7 42 ON_HOLD
  pipelinectl assign --job 7 42 ROUND1 --interviewer "ana"
  pipelinectl feedback pending --interviewer-id 4`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.globals.ConfigPath, "config", "", "config file (defaults to ./configs/config.yaml)")
	root.PersistentFlags().BoolVar(&a.globals.JSON, "json", false, "print JSON instead of tables")

	root.AddCommand(
		a.rosterCmd(),
		a.filterCmd(),
		a.expandCmd(),
		a.moveCmd(),
		a.assignCmd(),
		a.interviewersCmd(),
		a.feedbackCmd(),
	)
	return root
}

func (a *app) jobFlag(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&a.jobID, "job", 0, "job id (required)")
	_ = cmd.MarkFlagRequired("job")
}

// withJob opens a session with the job's roster loaded.
func (a *app) withJob(cmd *cobra.Command, fn func(ctx context.Context, s *Session, out io.Writer) error) error {
	return a.withSession(cmd, func(ctx context.Context, s *Session, out io.Writer) error {
		if err := s.OpenJob(ctx, a.jobID); err != nil {
			return err
		}
		return fn(ctx, s, out)
	})
}

func (a *app) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *Session, out io.Writer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, closeFn, err := a.open(ctx, a.globals)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, s, cmd.OutOrStdout())
}

func parseCandidateID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(apperrors.FieldError{Field: "candidate", Message: "candidate id must be a positive integer"})
	}
	return id, nil
}

func parseTarget(raw string) (stage.Stage, error) {
	target, err := stage.ParseStage(raw)
	if err != nil {
		return "", apperrors.NewValidationError(apperrors.FieldError{Field: "stage", Message: err.Error()})
	}
	return target, nil
}

func (a *app) rosterCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "List the job's candidates under the saved filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *Session, out io.Writer) error {
				openErr := s.OpenJob(ctx, a.jobID)
				state := s.Store.View()
				failed, isFailed := state.(store.Failed)
				if openErr != nil && !isFailed {
					return openErr
				}

				list := s.Store.Filtered()
				if all {
					list = s.Store.Roster()
				}
				if isFailed {
					list = failed.Stale
				}
				if err := renderRoster(out, a.globals.JSON, state, s.Store.Preferences(), s.Store.Counts(), list); err != nil {
					return err
				}
				return openErr
			})
		},
	}
	a.jobFlag(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "ignore the saved filter")
	return cmd
}

func (a *app) filterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "filter <" + joinFilters() + ">",
		Short:     "Set the job's active filter tab",
		Args:      cobra.ExactArgs(1),
		ValidArgs: stage.Filters(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withJob(cmd, func(ctx context.Context, s *Session, out io.Writer) error {
				prefs, err := s.Store.SetFilter(ctx, args[0])
				if err != nil {
					return err
				}
				return renderRoster(out, a.globals.JSON, s.Store.View(), prefs, s.Store.Counts(), s.Store.Filtered())
			})
		},
	}
	a.jobFlag(cmd)
	return cmd
}

func (a *app) expandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand <candidate-id>",
		Short: "Toggle a candidate's expanded details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCandidateID(args[0])
			if err != nil {
				return err
			}
			return a.withJob(cmd, func(ctx context.Context, s *Session, out io.Writer) error {
				cand, err := s.candidate(id)
				if err != nil {
					return err
				}
				prefs, err := s.Store.ToggleExpanded(ctx, id)
				if err != nil {
					return err
				}
				return renderCandidate(out, a.globals.JSON, cand, prefs.IsExpanded(id))
			})
		},
	}
	a.jobFlag(cmd)
	return cmd
}

func (a *app) moveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <candidate-id> <stage>",
		Short: "Move a candidate to ON_HOLD, HIRED or REJECTED",
		Long: `Move a candidate along the funnel. Interview rounds need an interviewer
and go through the assign command instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCandidateID(args[0])
			if err != nil {
				return err
			}
			target, err := parseTarget(args[1])
			if err != nil {
				return err
			}
			return a.withJob(cmd, func(ctx context.Context, s *Session, out io.Writer) error {
				res, err := s.Move(ctx, id, target)
				if err != nil {
					return err
				}
				return renderResult(out, a.globals.JSON, res)
			})
		},
	}
	a.jobFlag(cmd)
	return cmd
}

func (a *app) assignCmd() *cobra.Command {
	var req AssignRequest
	cmd := &cobra.Command{
		Use:   "assign <candidate-id> <ROUND1|ROUND2|ROUND3>",
		Short: "Book an interviewer, send the invitation and move the candidate",
		Long: `Assign an interviewer to the candidate's next round. The invitation is
sent first; the candidate only moves once it went out.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCandidateID(args[0])
			if err != nil {
				return err
			}
			target, err := parseTarget(args[1])
			if err != nil {
				return err
			}
			req.CandidateID = id
			req.Target = target
			return a.withJob(cmd, func(ctx context.Context, s *Session, out io.Writer) error {
				res, draft, err := s.Assign(ctx, req)
				if err != nil {
					return err
				}
				return renderAssignment(out, a.globals.JSON, res, draft)
			})
		},
	}
	a.jobFlag(cmd)
	cmd.Flags().StringVar(&req.Interviewer, "interviewer", "", "interviewer id, or a name/email fragment matching exactly one interviewer")
	cmd.Flags().StringVar(&req.Subject, "subject", "", "override the invitation subject")
	cmd.Flags().StringVar(&req.Body, "body", "", "override the invitation body")
	_ = cmd.MarkFlagRequired("interviewer")
	return cmd
}

func (a *app) interviewersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interviewers [query]",
		Short: "List interviewers, optionally narrowed by name or email",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return a.withSession(cmd, func(ctx context.Context, s *Session, out io.Writer) error {
				list, err := s.Interviewers(ctx, query)
				if err != nil {
					return err
				}
				return renderInterviewers(out, a.globals.JSON, list)
			})
		},
	}
}

func (a *app) feedbackCmd() *cobra.Command {
	var who feedback.Interviewer

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Review and submit interview feedback",
	}
	cmd.PersistentFlags().Int64Var(&who.ID, "interviewer-id", 0, "interviewer id (required)")
	cmd.PersistentFlags().StringVar(&who.Name, "interviewer-name", "", "name recorded on the feedback")
	cmd.PersistentFlags().StringVar(&who.Email, "interviewer-email", "", "email recorded on the feedback")
	_ = cmd.MarkPersistentFlagRequired("interviewer-id")

	list := func(done bool) func(cmd *cobra.Command, _ []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *Session, out io.Writer) error {
				agg := s.Feedback(ctx, who)
				if err := agg.Load(ctx); err != nil {
					return err
				}
				if done {
					return renderInterviews(out, a.globals.JSON, agg.Done())
				}
				return renderInterviews(out, a.globals.JSON, agg.Pending())
			})
		}
	}

	pending := &cobra.Command{
		Use:   "pending",
		Short: "Interviews waiting for your feedback",
		Args:  cobra.NoArgs,
		RunE:  list(false),
	}
	done := &cobra.Command{
		Use:   "done",
		Short: "Interviews you already gave feedback on",
		Args:  cobra.NoArgs,
		RunE:  list(true),
	}

	var text string
	var technical, behaviour int
	submit := &cobra.Command{
		Use:   "submit <candidate-id>",
		Short: "Record feedback on the candidate's current round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCandidateID(args[0])
			if err != nil {
				return err
			}
			in := feedback.Input{FreeText: text}
			if cmd.Flags().Changed("technical") {
				in.TechnicalScore = &technical
			}
			if cmd.Flags().Changed("behaviour") {
				in.BehaviourScore = &behaviour
			}
			return a.withSession(cmd, func(ctx context.Context, s *Session, out io.Writer) error {
				if a.jobID > 0 {
					if err := s.OpenJob(ctx, a.jobID); err != nil {
						return err
					}
				}
				agg := s.Feedback(ctx, who)
				if err := agg.Load(ctx); err != nil {
					return err
				}
				iv, err := agg.SubmitFeedback(ctx, id, in)
				if err != nil {
					return err
				}
				return renderInterviews(out, a.globals.JSON, []models.Interview{iv})
			})
		},
	}
	submit.Flags().StringVar(&text, "text", "", "free-text feedback (required)")
	submit.Flags().IntVar(&technical, "technical", 0, "technical score 1-10")
	submit.Flags().IntVar(&behaviour, "behaviour", 0, "behavioural score 1-10")
	submit.Flags().Int64Var(&a.jobID, "job", 0, "job whose roster to refresh afterwards")

	cmd.AddCommand(pending, done, submit)
	return cmd
}
