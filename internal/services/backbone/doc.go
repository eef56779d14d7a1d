// Package backbone integrates the external image-backbone runner that turns
// a directory of sampled frames into a per-clip feature array. The heavy
// model inference lives in the runner binary; this package owns the CLI
// contract and structured progress parsing. Tests swap in fakes so workflow
// behaviour can be exercised without the real runner.
package backbone
