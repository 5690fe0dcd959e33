// Package config loads monctl project settings and resource definitions.
//
// # Project file
//
// monctl.yaml holds the API endpoint, execution limits, resource locations,
// the run history path and telemetry settings:
//
//	api:
//	  url: https://monitoring.example.com
//	  timeout: 30s
//	  rate_limit: 10
//	  burst: 5
//	execution:
//	  max_concurrency: 8
//	  max_retries: 2
//	  retry_kinds: [transient, throttled, timeout]
//	resources:
//	  paths: [resources]
//	store:
//	  path: .monctl/history.db
//
// MONCTL_API_URL, MONCTL_API_TOKEN, MONCTL_MAX_CONCURRENCY and
// MONCTL_STORE_PATH override the file. Validation uses struct tags.
//
// # Resource definitions
//
// Resources are YAML documents, several per file if separated by "---":
//
//	kind: monitor
//	project: web
//	id: cpu-high
//	name: CPU above 90%
//	spec:
//	  query: avg(last_5m):avg:system.cpu.user{role:web} > 90
//
// LoadResources walks files and directories, validates every document and
// rejects duplicate tracking ids. Watcher re-runs the load when files change.
package config
