// Package sqlinline holds the marked SQL statements of the asset ledger.
package sqlinline

const QCreateGeneratedAssets = `--sql 2ad4d54d-2ac5-48bc-91fe-b781ac878a21
create table if not exists generated_assets (
  id uuid primary key,
  run_id uuid not null,
  job_id text not null,
  kind text not null,
  brief_name text not null,
  target_region text not null,
  product_name text not null,
  aspect_ratio text not null,
  seed bigint not null,
  source_url text not null,
  path text not null,
  bytes bigint not null,
  width int not null,
  height int not null,
  created_at timestamptz not null default now()
);
`

const QIndexGeneratedAssetsRun = `--sql 887606cc-0b0f-4057-8e08-6236c884c263
create index if not exists generated_assets_run_id_idx on generated_assets (run_id);
`

const QInsertGeneratedAsset = `--sql f4741d2c-d519-48e1-973c-02f8b2b94251
insert into generated_assets(
  id,
  run_id,
  job_id,
  kind,
  brief_name,
  target_region,
  product_name,
  aspect_ratio,
  seed,
  source_url,
  path,
  bytes,
  width,
  height,
  created_at
) values (
  $1::uuid,
  $2::uuid,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  $8::text,
  $9::bigint,
  $10::text,
  $11::text,
  $12::bigint,
  $13::int,
  $14::int,
  $15::timestamptz
)
on conflict (id) do nothing;
`

const QCountAssetsByRun = `--sql df7c36ff-ea1d-4296-9f1d-b4a5821945e5
select count(*)
from generated_assets
where run_id = $1::uuid;
`
