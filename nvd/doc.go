// Package nvd looks up CVE details in the NVD CVE API 2.0.
//
// Requests from every enrichment worker share one Limiter so the public
// API's request budget is respected. Transient failures are retried with
// exponential backoff; a lookup that still fails degrades to an empty
// record with the default severity rather than blocking the pipeline.
package nvd
