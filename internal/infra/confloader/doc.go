// Package confloader loads layered configuration with koanf.
//
// Sources, lowest to highest priority:
//
//  1. Defaults already present in the target struct
//  2. YAML configuration file
//  3. .env files (only variables not already set in the environment)
//  4. Environment variables (RESPKV_SECTION_KEY)
//  5. Overrides, typically command-line flags that were explicitly set
//
// The Watcher reports changes to a configuration file so callers can
// re-apply settings that are safe to change at runtime.
package confloader
