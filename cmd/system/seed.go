package system

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/app"
	"github.com/Alijeyrad/franchise_backend/internal/service/commission"
	"github.com/Alijeyrad/franchise_backend/internal/service/directory"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/franchise_backend/pkg/paseto"
)

type seedResult struct {
	MemberID    uuid.UUID  `json:"member_id"`
	RuleID      *uuid.UUID `json:"rule_id,omitempty"`
	AccessToken string     `json:"access_token"`
}

// NewSeedCommand bootstraps an empty network: the HQ member, optionally the
// global commission rule, and an access token to call the API with.
func NewSeedCommand() *cobra.Command {
	var (
		memberID string
		name     string
		email    string
		rates    []string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the HQ member and the global commission rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			cfg, err := config.ReadConfigFile(cfgPath)
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}

			id := uuid.Must(uuid.NewV7())
			if memberID != "" {
				if id, err = uuid.Parse(memberID); err != nil {
					return fmt.Errorf("invalid --member-id: %w", err)
				}
			}

			var rule *commission.RuleInput
			if len(rates) > 0 {
				if len(rates) != 5 {
					return fmt.Errorf("--global-rule needs 5 rates (hq,branch,agency,dealer,member_benefit), got %d", len(rates))
				}
				d := make([]decimal.Decimal, 5)
				for i, r := range rates {
					if d[i], err = decimal.NewFromString(r); err != nil {
						return fmt.Errorf("invalid rate %q: %w", r, err)
					}
				}
				rule = &commission.RuleInput{
					HQRate: d[0], BranchRate: d[1], AgencyRate: d[2], DealerRate: d[3], MemberBenefitRate: d[4],
				}
			}

			var (
				members directory.Service
				rules   commission.Service
				tokens  *pasetotoken.Manager
			)
			fxApp := fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				fx.Populate(&members, &rules, &tokens),
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			)
			if err := fxApp.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := fxApp.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = fxApp.Stop(context.Background()) }()

			system := authorize.Caller{UserID: id, Role: authorize.RoleHQ}
			m, err := members.UpsertMember(ctx, system, id, directory.MemberInput{
				Name:  name,
				Role:  authorize.RoleHQ,
				Email: email,
			})
			if err != nil {
				return fmt.Errorf("seed hq member: %w", err)
			}
			res := seedResult{MemberID: m.ID}

			if rule != nil {
				saved, err := rules.UpsertRule(ctx, system, *rule)
				if err != nil {
					return fmt.Errorf("seed global rule: %w", err)
				}
				res.RuleID = &saved.ID
			}

			if res.AccessToken, err = tokens.IssueAccess(pasetotoken.Identity{UserID: m.ID, Role: authorize.RoleHQ}); err != nil {
				return fmt.Errorf("issue token: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&memberID, "member-id", "", "HQ member id (default: a new UUIDv7)")
	cmd.Flags().StringVar(&name, "name", "Headquarters", "HQ member display name")
	cmd.Flags().StringVar(&email, "email", "", "HQ notification address")
	cmd.Flags().StringSliceVar(&rates, "global-rule", nil, "Global rule rates in percent: hq,branch,agency,dealer,member_benefit")

	return cmd
}
