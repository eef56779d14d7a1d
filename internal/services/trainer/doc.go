// Package trainer integrates the external sequence-model runner that fits,
// evaluates and applies the recurrent classifier over cached feature
// arrays. The runner binary owns the model internals; this package owns the
// CLI contract, streamed epoch metrics and ordered prediction results.
package trainer
