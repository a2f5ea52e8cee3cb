package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ehr/clinic/internal/app"
	"github.com/ehr/clinic/internal/config"
	"github.com/ehr/clinic/internal/domain/identity"
	"github.com/ehr/clinic/internal/domain/medication"
	"github.com/ehr/clinic/internal/domain/referral"
	"github.com/ehr/clinic/internal/platform/flatfile"
	"github.com/ehr/clinic/internal/platform/logging"
	"github.com/ehr/clinic/internal/store"
)

// opener builds the App for one command invocation. The returned release
// func is called once the command has finished.
type opener func() (*app.App, func(), error)

func main() {
	rootCmd := newRootCmd(openFromEnv)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openFromEnv() (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, closer := logging.New(cfg, os.Stderr)
	a, err := app.New(cfg, afero.NewOsFs(), logger)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return a, func() { closer.Close() }, nil
}

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "clinic",
		Short:        "Clinic record store for patients, appointments, prescriptions and referrals",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(summaryCmd(open))
	rootCmd.AddCommand(patientsCmd(open))
	rootCmd.AddCommand(appointmentsCmd(open))
	rootCmd.AddCommand(prescriptionsCmd(open))
	rootCmd.AddCommand(referralsCmd(open))
	rootCmd.AddCommand(idsCmd(open))
	return rootCmd
}

// run loads the store, calls fn and saves again when mutated is set.
func run(cmd *cobra.Command, open opener, mutates bool, fn func(ctx context.Context, a *app.App, out io.Writer) error) error {
	a, release, err := open()
	if err != nil {
		return err
	}
	defer release()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 4*a.Config().IOTimeout+time.Second)
	defer cancel()

	res := a.Load(ctx)
	for kind, err := range res.Errors {
		if !flatfile.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", kind, err)
		}
	}

	if err := fn(ctx, a, cmd.OutOrStdout()); err != nil {
		return err
	}
	if mutates {
		if err := a.Save(ctx); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	return a.Close(ctx)
}

func table(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func summaryCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show record counts and load diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, false, func(ctx context.Context, a *app.App, out io.Writer) error {
				counts := a.Store().Counts()
				tw := table(out)
				fmt.Fprintln(tw, "KIND\tRECORDS")
				for _, k := range store.Kinds {
					fmt.Fprintf(tw, "%s\t%d\n", k, counts[k])
				}
				if err := tw.Flush(); err != nil {
					return err
				}

				res := a.LastLoad()
				for _, rep := range res.Reports {
					for _, d := range rep.Diagnostics {
						fmt.Fprintf(out, "%s:%d: %s: %s\n", d.File, d.Line, d.Kind, d.Detail)
					}
				}
				fmt.Fprintf(out, "Skipped rows: %d\n", res.Skipped())
				return nil
			})
		},
	}
}

// ---------------------------------------------------------------------------
// patients
// ---------------------------------------------------------------------------

func patientsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "Inspect registered patients",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, false, func(ctx context.Context, a *app.App, out io.Writer) error {
				tw := table(out)
				fmt.Fprintln(tw, "ID\tNAME\tNHS NUMBER\tDATE OF BIRTH\tGP SURGERY")
				for _, p := range a.Store().ListPatients() {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID(), p.FullName(), p.NHSNumber, p.DateOfBirth, p.GPSurgeryID)
				}
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Report malformed phone numbers and email addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, false, func(ctx context.Context, a *app.App, out io.Writer) error {
				region := a.Config().PhoneRegion
				problems := 0
				for _, p := range a.Store().ListPatients() {
					for _, issue := range identity.ContactIssues(p, region) {
						fmt.Fprintf(out, "%s: %s\n", p.ID(), issue)
						problems++
					}
				}
				fmt.Fprintf(out, "%d contact issue(s) found.\n", problems)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "next-id",
		Short: "Print the next patient id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, false, func(ctx context.Context, a *app.App, out io.Writer) error {
				fmt.Fprintln(out, a.Store().GenerateNewPatientID())
				return nil
			})
		},
	})

	return cmd
}

// ---------------------------------------------------------------------------
// appointments
// ---------------------------------------------------------------------------

func appointmentsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "Inspect and cancel appointments",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			return run(cmd, open, false, func(ctx context.Context, a *app.App, out io.Writer) error {
				appts := a.Store().ListAppointments()
				if patientID != "" {
					appts = a.Store().AppointmentsForPatient(patientID)
				}
				for _, appt := range appts {
					fmt.Fprintln(out, appt.String())
				}
				return nil
			})
		},
	}
	listCmd.Flags().String("patient", "", "Only show this patient's appointments")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return run(cmd, open, true, func(ctx context.Context, a *app.App, out io.Writer) error {
				appt, ok := a.Store().FindAppointment(id)
				if !ok {
					return fmt.Errorf("appointment %s: %w", id, store.ErrNotFound)
				}
				appt.Cancel()
				if err := a.Store().UpdateAppointment(id, appt); err != nil {
					return err
				}
				fmt.Fprintf(out, "Appointment %s cancelled.\n", id)
				return nil
			})
		},
	})

	return cmd
}

// ---------------------------------------------------------------------------
// prescriptions
// ---------------------------------------------------------------------------

func prescriptionsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prescriptions",
		Short: "List and issue prescriptions",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List prescriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			return run(cmd, open, false, func(ctx context.Context, a *app.App, out io.Writer) error {
				rxs := a.Store().ListPrescriptions()
				if patientID != "" {
					rxs = a.Store().PrescriptionsForPatient(patientID)
				}
				for _, rx := range rxs {
					fmt.Fprintln(out, rx.String())
				}
				return nil
			})
		},
	}
	listCmd.Flags().String("patient", "", "Only show this patient's prescriptions")
	cmd.AddCommand(listCmd)

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Issue a prescription and render its pharmacy notice",
		RunE: func(cmd *cobra.Command, args []string) error {
			rx := medication.NewPrescription()
			rx.PatientID, _ = cmd.Flags().GetString("patient")
			rx.ClinicianID, _ = cmd.Flags().GetString("clinician")
			rx.AppointmentID, _ = cmd.Flags().GetString("appointment")
			rx.MedicationName, _ = cmd.Flags().GetString("medication")
			rx.Dosage, _ = cmd.Flags().GetString("dosage")
			rx.Frequency, _ = cmd.Flags().GetString("frequency")
			rx.DurationDays, _ = cmd.Flags().GetInt("days")
			rx.Quantity, _ = cmd.Flags().GetInt("quantity")
			rx.Instructions, _ = cmd.Flags().GetString("instructions")
			rx.PharmacyName, _ = cmd.Flags().GetString("pharmacy")
			if rx.PatientID == "" {
				return fmt.Errorf("--patient is required")
			}
			today := time.Now().Format(time.DateOnly)
			rx.Date = today
			rx.IssueDate = today

			return run(cmd, open, true, func(ctx context.Context, a *app.App, out io.Writer) error {
				if err := a.Store().AddPrescription(ctx, rx); err != nil {
					return err
				}
				fmt.Fprintf(out, "Prescription %s issued.\n", rx.ID)
				return nil
			})
		},
	}
	addCmd.Flags().String("patient", "", "Patient id (required)")
	addCmd.Flags().String("clinician", "", "Prescribing clinician id")
	addCmd.Flags().String("appointment", "", "Related appointment id")
	addCmd.Flags().String("medication", "", "Medication name")
	addCmd.Flags().String("dosage", "", "Dosage")
	addCmd.Flags().String("frequency", "", "Frequency")
	addCmd.Flags().Int("days", 0, "Duration in days")
	addCmd.Flags().Int("quantity", 0, "Quantity")
	addCmd.Flags().String("instructions", "", "Instructions for the patient")
	addCmd.Flags().String("pharmacy", "", "Pharmacy name")
	cmd.AddCommand(addCmd)

	return cmd
}

// ---------------------------------------------------------------------------
// referrals
// ---------------------------------------------------------------------------

func referralsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "referrals",
		Short: "Manage referrals",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List referrals",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			return run(cmd, open, false, func(ctx context.Context, a *app.App, out io.Writer) error {
				refs := a.Store().ListReferrals()
				if patientID != "" {
					refs = a.Store().ReferralsForPatient(patientID)
				}
				for _, r := range refs {
					fmt.Fprintln(out, r.String())
				}
				return nil
			})
		},
	}
	listCmd.Flags().String("patient", "", "Only show this patient's referrals")
	cmd.AddCommand(listCmd)

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a referral",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := referral.New()
			r.PatientID, _ = cmd.Flags().GetString("patient")
			r.ReferringClinicianID, _ = cmd.Flags().GetString("from")
			r.ReferredToClinicianID, _ = cmd.Flags().GetString("to")
			r.Reason, _ = cmd.Flags().GetString("reason")
			r.ClinicalSummary, _ = cmd.Flags().GetString("summary")
			urgency, _ := cmd.Flags().GetString("urgency")
			u, err := parseUrgency(urgency)
			if err != nil {
				return err
			}
			r.Urgency = u
			if r.PatientID == "" {
				return fmt.Errorf("--patient is required")
			}
			today := time.Now().Format(time.DateOnly)
			r.Date = today
			r.CreatedDate = today
			r.LastUpdated = today

			return run(cmd, open, true, func(ctx context.Context, a *app.App, out io.Writer) error {
				if err := a.Store().AddReferral(r); err != nil {
					return err
				}
				fmt.Fprintf(out, "Referral %s created.\n", r.ID)
				return nil
			})
		},
	}
	addCmd.Flags().String("patient", "", "Patient id (required)")
	addCmd.Flags().String("from", "", "Referring clinician id")
	addCmd.Flags().String("to", "", "Receiving clinician id")
	addCmd.Flags().String("urgency", string(referral.UrgencyRoutine), "Routine, Urgent or Emergency")
	addCmd.Flags().String("reason", "", "Reason for referral")
	addCmd.Flags().String("summary", "", "Clinical summary")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "send <id>",
		Short: "Send a referral and render its notice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return run(cmd, open, true, func(ctx context.Context, a *app.App, out io.Writer) error {
				r, ok := a.Store().FindReferral(id)
				if !ok {
					return fmt.Errorf("referral %s: %w", id, referral.ErrNotFound)
				}
				if err := a.Store().SendReferral(ctx, r); err != nil {
					return err
				}
				fmt.Fprintf(out, "Referral %s sent.\n", id)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "accept <id>",
		Short: "Accept a new or sent referral",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return run(cmd, open, true, func(ctx context.Context, a *app.App, out io.Writer) error {
				ok, err := a.Store().AcceptReferral(id)
				if err != nil {
					return err
				}
				if !ok {
					r, _ := a.Store().FindReferral(id)
					return fmt.Errorf("referral %s cannot be accepted from status %q", id, r.Status)
				}
				fmt.Fprintf(out, "Referral %s accepted.\n", id)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "audit",
		Short: "Print the registry audit trail for this run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, false, func(ctx context.Context, a *app.App, out io.Writer) error {
				tw := table(out)
				fmt.Fprintln(tw, "RECORDED\tACTION\tREFERRAL\tDESCRIPTION")
				for _, e := range a.Registry().AuditTrail() {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Recorded.Format(time.RFC3339), e.Action, e.ReferralID, e.Description)
				}
				return tw.Flush()
			})
		},
	})

	return cmd
}

var urgencies = []referral.Urgency{referral.UrgencyRoutine, referral.UrgencyUrgent, referral.UrgencyEmergency}

func parseUrgency(s string) (referral.Urgency, error) {
	u, ok := lo.Find(urgencies, func(u referral.Urgency) bool {
		return strings.EqualFold(string(u), strings.TrimSpace(s))
	})
	if !ok {
		return "", fmt.Errorf("unknown urgency %q", s)
	}
	return u, nil
}

// ---------------------------------------------------------------------------
// ids
// ---------------------------------------------------------------------------

func idsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ids",
		Short: "Identifier helpers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "next <kind>",
		Short: "Print the next id for patient, appointment, prescription or referral",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := store.ParseKind(args[0])
			if err != nil {
				return err
			}
			return run(cmd, open, false, func(ctx context.Context, a *app.App, out io.Writer) error {
				id, err := a.Store().GenerateNewID(kind)
				if errors.Is(err, store.ErrUnknownKind) {
					return fmt.Errorf("no id sequence for %s", kind)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(out, id)
				return nil
			})
		},
	})

	return cmd
}
