// Package pipeline runs queue maintenance and consumption as ordered steps.
//
// A typical run resets the namespace when asked to, seeds it with start
// URLs and then drains it:
//
//	p := pipeline.New(pipeline.WithLogger(logger))
//	if cfg.PurgeOnStart {
//		p.AddStep(pipeline.NewPurgeStep())
//	}
//	p.AddSteps(pipeline.NewSeedStep(urls), pipeline.NewDrainStep(group))
//	run, err := p.Execute(ctx, sched)
//
// Purging is never implicit: it only happens when a PurgeStep is added.
//
// ConsumerGroup runs several crawler engines concurrently with errgroup,
// each on its own scheduler, the way separate worker processes would
// share one durable namespace.
package pipeline
