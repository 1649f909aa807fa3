// Package config loads docsync configuration from YAML or CUE.
//
// Both formats share one shape:
//
//	scope: chat
//	db: docsync.db
//	scheduler:
//	  debounce: 100ms
//	  trigger_debounce:
//	    message_edited: 500ms
//	  poll_interval: 25ms
//	  max_wait: 2s
//	  throttle: 50ms
//	  merge_interval: 1s
//
// CUE files are checked against an embedded #Config schema first, so type
// errors and unknown fields carry a file position. Absent fields keep the
// defaults from Default.
package config
