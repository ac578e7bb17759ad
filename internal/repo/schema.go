package repo

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	moneyType = map[string]string{dialect.Postgres: "numeric(20,4)"}
	rateType  = map[string]string{dialect.Postgres: "numeric(7,4)"}
)

func uuidCol(name string, nullable bool) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeUUID, Nullable: nullable}
}

func timeCol(name string, nullable bool) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeTime, Nullable: nullable}
}

func moneyCol(name string) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeOther, SchemaType: moneyType, Default: "0"}
}

func rateCol(name string) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeOther, SchemaType: rateType}
}

func strCol(name string, size int64, nullable bool) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeString, Size: size, Nullable: nullable}
}

func enumCol(name string, def string, values ...string) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeEnum, Enums: values, Default: def}
}

var (
	// CommissionRulesColumns holds the columns for the "commission_rules" table.
	CommissionRulesColumns = []*schema.Column{
		uuidCol("id", false),
		strCol("category", 64, true),
		strCol("region_code", 32, true),
		{Name: "scope_key", Type: field.TypeString, Size: 128, Unique: true},
		rateCol("hq_rate"),
		rateCol("branch_rate"),
		rateCol("agency_rate"),
		rateCol("dealer_rate"),
		rateCol("member_benefit_rate"),
		{Name: "version", Type: field.TypeInt64, Default: 1},
		uuidCol("updated_by", true),
		timeCol("created_at", false),
		timeCol("updated_at", false),
	}
	CommissionRulesTable = &schema.Table{
		Name:       "commission_rules",
		Columns:    CommissionRulesColumns,
		PrimaryKey: []*schema.Column{CommissionRulesColumns[0]},
	}

	// MerchantsColumns holds the columns for the "merchants" table.
	MerchantsColumns = []*schema.Column{
		uuidCol("id", false),
		strCol("name", 255, false),
		strCol("category", 64, false),
		strCol("region_code", 32, false),
		uuidCol("dealer_id", true),
		uuidCol("agency_id", true),
		uuidCol("branch_id", true),
		enumCol("status", string(MerchantActive), string(MerchantPending), string(MerchantActive), string(MerchantSuspended)),
		timeCol("created_at", false),
		timeCol("updated_at", false),
	}
	MerchantsTable = &schema.Table{
		Name:       "merchants",
		Columns:    MerchantsColumns,
		PrimaryKey: []*schema.Column{MerchantsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "merchant_dealer_id", Columns: []*schema.Column{MerchantsColumns[4]}},
		},
	}

	// MembersColumns holds the columns for the "members" table.
	MembersColumns = []*schema.Column{
		uuidCol("id", false),
		strCol("name", 255, false),
		strCol("role", 16, false),
		strCol("region_code", 32, true),
		uuidCol("parent_id", true),
		enumCol("status", string(MemberActive), string(MemberActive), string(MemberInactive)),
		strCol("email", 255, true),
		strCol("phone", 32, true),
		{Name: "payout_account", Type: field.TypeString, Size: 1024, Nullable: true},
		timeCol("created_at", false),
		timeCol("updated_at", false),
	}
	MembersTable = &schema.Table{
		Name:       "members",
		Columns:    MembersColumns,
		PrimaryKey: []*schema.Column{MembersColumns[0]},
		Indexes: []*schema.Index{
			{Name: "member_role_status", Columns: []*schema.Column{MembersColumns[2], MembersColumns[5]}},
		},
	}

	// RevenueRecordsColumns holds the columns for the "revenue_records" table.
	RevenueRecordsColumns = []*schema.Column{
		uuidCol("id", false),
		uuidCol("merchant_id", false),
		uuidCol("rule_id", false),
		{Name: "rule_version", Type: field.TypeInt64},
		moneyCol("total_amount"),
		moneyCol("hq_amount"),
		moneyCol("branch_amount"),
		moneyCol("agency_amount"),
		moneyCol("dealer_amount"),
		moneyCol("member_benefit_amount"),
		uuidCol("dealer_id", true),
		uuidCol("agency_id", true),
		uuidCol("branch_id", true),
		timeCol("period_start", false),
		timeCol("period_end", false),
		timeCol("occurred_at", false),
		{Name: "source_event_id", Type: field.TypeString, Size: 128, Nullable: true, Unique: true},
		enumCol("status", string(RecordPending), string(RecordPending), string(RecordPaid)),
		timeCol("paid_at", true),
		uuidCol("hq_settlement_id", true),
		uuidCol("branch_settlement_id", true),
		uuidCol("agency_settlement_id", true),
		uuidCol("dealer_settlement_id", true),
		timeCol("hq_paid_at", true),
		timeCol("branch_paid_at", true),
		timeCol("agency_paid_at", true),
		timeCol("dealer_paid_at", true),
		timeCol("created_at", false),
	}
	RevenueRecordsTable = &schema.Table{
		Name:       "revenue_records",
		Columns:    RevenueRecordsColumns,
		PrimaryKey: []*schema.Column{RevenueRecordsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "revenuerecord_period_start", Columns: []*schema.Column{RevenueRecordsColumns[13]}},
			{Name: "revenuerecord_dealer_id_period_start", Columns: []*schema.Column{RevenueRecordsColumns[10], RevenueRecordsColumns[13]}},
			{Name: "revenuerecord_agency_id_period_start", Columns: []*schema.Column{RevenueRecordsColumns[11], RevenueRecordsColumns[13]}},
			{Name: "revenuerecord_branch_id_period_start", Columns: []*schema.Column{RevenueRecordsColumns[12], RevenueRecordsColumns[13]}},
			{Name: "revenuerecord_merchant_id", Columns: []*schema.Column{RevenueRecordsColumns[1]}},
		},
	}

	// SettlementsColumns holds the columns for the "settlements" table.
	SettlementsColumns = []*schema.Column{
		uuidCol("id", false),
		uuidCol("user_id", false),
		strCol("owner_tier", 16, true),
		enumCol("settlement_type", string(TypeRevenue), string(TypeRevenue), string(TypeInfluencer)),
		timeCol("period_start", false),
		timeCol("period_end", false),
		moneyCol("amount"),
		{Name: "record_count", Type: field.TypeInt, Default: 0},
		enumCol("status", string(SettlementPending), string(SettlementPending), string(SettlementApproved), string(SettlementPaid)),
		timeCol("approved_at", true),
		uuidCol("approved_by", true),
		timeCol("paid_at", true),
		uuidCol("paid_by", true),
		enumCol("transfer_status", string(TransferNone), string(TransferNone), string(TransferQueued), string(TransferSucceeded), string(TransferFailed)),
		strCol("transfer_reference", 128, true),
		strCol("transfer_error", 1024, true),
		timeCol("created_at", false),
		timeCol("updated_at", false),
	}
	SettlementsTable = &schema.Table{
		Name:       "settlements",
		Columns:    SettlementsColumns,
		PrimaryKey: []*schema.Column{SettlementsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "settlement_open_period",
				Unique:  true,
				Columns: []*schema.Column{SettlementsColumns[1], SettlementsColumns[3], SettlementsColumns[4], SettlementsColumns[5]},
				Annotation: &entsql.IndexAnnotation{
					Where: "status IN ('pending', 'approved')",
				},
			},
			{Name: "settlement_user_id_status", Columns: []*schema.Column{SettlementsColumns[1], SettlementsColumns[8]}},
		},
	}

	// SettlementSchedulesColumns holds the columns for the "settlement_schedules" table.
	SettlementSchedulesColumns = []*schema.Column{
		uuidCol("id", false),
		enumCol("schedule_type", string(ScheduleDaily), string(ScheduleDaily), string(ScheduleWeekly), string(ScheduleMonthly)),
		strCol("target_role", 16, false),
		enumCol("status", string(ScheduleActive), string(ScheduleActive), string(SchedulePaused)),
		timeCol("last_run_at", true),
		timeCol("next_run_at", true),
		timeCol("created_at", false),
		timeCol("updated_at", false),
	}
	SettlementSchedulesTable = &schema.Table{
		Name:       "settlement_schedules",
		Columns:    SettlementSchedulesColumns,
		PrimaryKey: []*schema.Column{SettlementSchedulesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "settlementschedule_type_role", Unique: true, Columns: []*schema.Column{SettlementSchedulesColumns[1], SettlementSchedulesColumns[2]}},
		},
	}

	// ScheduleRunsColumns holds the columns for the "schedule_runs" table.
	ScheduleRunsColumns = []*schema.Column{
		uuidCol("id", false),
		uuidCol("schedule_id", false),
		strCol("schedule_type", 16, false),
		timeCol("window_start", false),
		timeCol("window_end", false),
		{Name: "created_count", Type: field.TypeInt, Default: 0},
		{Name: "skipped_count", Type: field.TypeInt, Default: 0},
		{Name: "failed_count", Type: field.TypeInt, Default: 0},
		{Name: "failures", Type: field.TypeString, Size: 2147483647, Nullable: true},
		enumCol("status", string(RunSucceeded), string(RunSucceeded), string(RunFailed)),
		timeCol("started_at", false),
		timeCol("finished_at", false),
	}
	ScheduleRunsTable = &schema.Table{
		Name:       "schedule_runs",
		Columns:    ScheduleRunsColumns,
		PrimaryKey: []*schema.Column{ScheduleRunsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "schedulerun_schedule_id_started_at", Columns: []*schema.Column{ScheduleRunsColumns[1], ScheduleRunsColumns[10]}},
		},
	}

	// InfluencersColumns holds the columns for the "influencers" table.
	InfluencersColumns = []*schema.Column{
		uuidCol("id", false),
		{Name: "member_id", Type: field.TypeUUID, Unique: true},
		strCol("name", 255, false),
		strCol("platform", 64, false),
		strCol("channel_url", 512, true),
		{Name: "follower_count", Type: field.TypeInt64, Default: 0},
		{Name: "referral_code", Type: field.TypeString, Size: 32, Unique: true},
		rateCol("commission_rate"),
		{Name: "total_conversions", Type: field.TypeInt64, Default: 0},
		moneyCol("total_revenue"),
		moneyCol("total_commission"),
		enumCol("status", string(InfluencerActive), string(InfluencerActive), string(InfluencerSuspended)),
		timeCol("created_at", false),
	}
	InfluencersTable = &schema.Table{
		Name:       "influencers",
		Columns:    InfluencersColumns,
		PrimaryKey: []*schema.Column{InfluencersColumns[0]},
	}

	// InfluencerConversionsColumns holds the columns for the "influencer_conversions" table.
	InfluencerConversionsColumns = []*schema.Column{
		uuidCol("id", false),
		uuidCol("influencer_id", false),
		uuidCol("source_user_id", true),
		strCol("conversion_type", 32, false),
		moneyCol("amount"),
		moneyCol("commission"),
		timeCol("converted_at", false),
		uuidCol("settlement_id", true),
		timeCol("paid_at", true),
	}
	InfluencerConversionsTable = &schema.Table{
		Name:       "influencer_conversions",
		Columns:    InfluencerConversionsColumns,
		PrimaryKey: []*schema.Column{InfluencerConversionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "influencerconversion_influencer_id_converted_at", Columns: []*schema.Column{InfluencerConversionsColumns[1], InfluencerConversionsColumns[6]}},
		},
	}

	// OutboxEventsColumns holds the columns for the "outbox_events" table.
	OutboxEventsColumns = []*schema.Column{
		uuidCol("id", false),
		strCol("topic", 128, false),
		uuidCol("aggregate_id", false),
		{Name: "payload", Type: field.TypeBytes, Nullable: true},
		enumCol("status", string(OutboxPending), string(OutboxPending), string(OutboxProcessing), string(OutboxDone), string(OutboxDead)),
		{Name: "attempts", Type: field.TypeInt, Default: 0},
		timeCol("available_at", false),
		timeCol("locked_until", true),
		strCol("last_error", 1024, true),
		timeCol("created_at", false),
		timeCol("processed_at", true),
	}
	OutboxEventsTable = &schema.Table{
		Name:       "outbox_events",
		Columns:    OutboxEventsColumns,
		PrimaryKey: []*schema.Column{OutboxEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "outboxevent_status_available_at", Columns: []*schema.Column{OutboxEventsColumns[4], OutboxEventsColumns[6]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		CommissionRulesTable,
		MerchantsTable,
		MembersTable,
		RevenueRecordsTable,
		SettlementsTable,
		SettlementSchedulesTable,
		ScheduleRunsTable,
		InfluencersTable,
		InfluencerConversionsTable,
		OutboxEventsTable,
	}
)

// Migrate creates or alters every table to match the definitions above.
func Migrate(ctx context.Context, drv dialect.Driver, opts ...schema.MigrateOption) error {
	m, err := schema.NewMigrate(drv, opts...)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
