// Package dataset owns the on-disk layout of the gesture corpus: the class
// catalog, clip discovery under the video tree and assembly of cached
// feature arrays into ordered sets for training and prediction. Ordering is
// deterministic (sorted clip path) so the sample order seen at training
// time is exactly the order seen at prediction time.
package dataset
