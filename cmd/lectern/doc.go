// Package main hosts the lectern CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC
// calls against the daemon, run control and event tailing, history
// inspection, folder watching, and configuration scaffolding. The batch
// subcommand is the pipeline executor the daemon spawns per input folder;
// it shares this binary so deployments ship a single executable.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags
// here.
package main
