// Package imaging provides the offscreen canvas behind pixel sampling and
// bitmap export.
//
// A Sampler draws each source image onto a Canvas at its natural size and
// keeps one canvas per source until it is released. Remote images are fetched
// directly when they share the page origin; otherwise, or when the direct
// fetch or decode fails, the bytes are requested through the same-origin relay.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based natural-image pixels:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, Min is inclusive and Max is exclusive (image.Rectangle)
//
// # Thread Safety
//
// Sampler is safe for concurrent use. A Canvas is read-only once created;
// crops and overlays always work on copies.
//
// # Error Handling
//
// Every failure is an *errors.AppError:
//   - cross_origin_blocked: the image could not be drawn and no relay succeeded
//   - image_fetch_failed: the relay or file read failed
//   - canvas_context_unavailable: the image is empty or exceeds the canvas limit
//   - validation: unsupported crop scale, format or quality
//   - export_serialization: encoding the output failed
//
// Out-of-range sample coordinates are clamped rather than rejected.
package imaging
