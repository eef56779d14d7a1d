// Package workflow coordinates the clip processing pipeline. A manager
// polls the queue, advances each item through frame extraction and feature
// extraction, keeps heartbeats fresh while a stage runs, and reclaims items
// whose worker died mid-stage.
package workflow
