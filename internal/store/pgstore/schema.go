package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
create table if not exists wallets (
	user_id        text primary key,
	coin_balance   bigint not null default 0 check (coin_balance >= 0),
	total_earnings bigint not null default 0 check (total_earnings >= 0),
	created_at     timestamptz not null default now(),
	updated_at     timestamptz not null default now()
);

create table if not exists coin_transactions (
	transaction_id uuid primary key,
	user_id        text not null,
	amount         bigint not null,
	reason         text not null,
	related_id     text,
	balance_after  bigint not null,
	metadata       jsonb not null default '{}',
	created_at     timestamptz not null default now()
);
create index if not exists idx_coin_tx_user_created on coin_transactions (user_id, created_at);

create table if not exists gift_transactions (
	transfer_id  uuid primary key,
	sender_id    text not null,
	recipient_id text not null,
	post_id      text,
	gift_id      text not null,
	coin_amount  bigint not null check (coin_amount > 0),
	created_at   timestamptz not null default now()
);
create index if not exists idx_gift_tx_sender on gift_transactions (sender_id);
create index if not exists idx_gift_tx_recipient on gift_transactions (recipient_id);

create table if not exists template_unlocks (
	user_id     text not null,
	template_id text not null,
	coins_spent bigint not null,
	unlocked_at timestamptz not null default now(),
	primary key (user_id, template_id)
);

create table if not exists daily_logins (
	user_id          text not null,
	login_date       text not null,
	coins_earned     bigint not null,
	consecutive_days integer not null,
	created_at       timestamptz not null default now(),
	primary key (user_id, login_date)
);

create table if not exists view_accruals (
	user_id        text primary key,
	credited_units bigint not null default 0,
	updated_at     timestamptz not null default now()
);

create table if not exists payment_events (
	external_event_id text primary key,
	user_id           text not null,
	coins             bigint not null check (coins > 0),
	processed_at      timestamptz not null default now()
);
create index if not exists idx_payment_events_user on payment_events (user_id);

create table if not exists gift_catalog (
	gift_id   text primary key,
	name      text not null,
	icon      text not null,
	coin_cost bigint not null check (coin_cost > 0)
);

create table if not exists premium_templates (
	template_id text primary key,
	creator_id  text not null,
	unlock_cost bigint not null check (unlock_cost > 0)
);
create index if not exists idx_premium_templates_creator on premium_templates (creator_id);
`

// EnsureSchema creates the economy tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return wrapStoreError(errorSubjectTx, "migrate", err)
	}
	return nil
}
