// Package videotextrelay is the overlay engine: it moves horizontally
// scrolling text across video frames and asks a rasterizer to draw it. The
// GStreamer relay that feeds it decoded frames lives in package pipeline;
// this package has no cgo dependencies.
//
// The overlay engine is frame driven: every decoded frame carries a
// presentation timestamp, and message positions advance by the time elapsed
// since the previous frame. Control calls (new ticker text, keyed messages)
// may arrive from any goroutine; they are queued and applied on a later
// frame, so the streaming thread never waits on a lock held by a caller.
//
// # Quick Start
//
// Relay a file with a ticker at two thirds of the frame height:
//
//	raster, err := pipeline.NewRasterizer()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	overlay, err := videotextrelay.NewOverlay(videotextrelay.OverlayConfig{
//	    TickerEnabled: true,
//	}, raster)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	relay, err := pipeline.NewRelay(pipeline.Config{
//	    SourceURI: "file:///media/sample.mp4",
//	}, overlay, raster)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := relay.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer relay.Stop()
//
//	overlay.SubmitText("Breaking: scrolling text works")
//	y := 80.0
//	overlay.AddMessage(videotextrelay.MessageSpec{Text: "3 laps then gone", Loops: 3, Y: &y})
//
//	<-relay.Done()
//
// Watch with any MPEG-TS client, e.g. `vlc tcp://127.0.0.1:10000`.
//
// # Motion
//
// A message enters at the right edge and travels leftwards at
// (frame width + text width) / scroll duration pixels per second, so one
// traversal takes the same time whatever the text length. When its right end
// leaves the left edge it re-enters on the right and a loop is counted.
// Messages with a positive loop target retire after that many traversals.
//
// # Threading
//
//   - Overlay.OnGeometry and Overlay.Render run on the render context
//     (the GStreamer streaming thread, or the preview loop)
//   - Every other Overlay method is safe from any goroutine
//   - pipeline.Relay methods are safe from any goroutine
//
// # Non-goals
//
// Frame-to-frame motion is exact; real-time scheduling beyond that is not
// attempted. Message state is not persisted. Text is drawn glyph by glyph
// without shaping.
package videotextrelay
