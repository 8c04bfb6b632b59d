/*

Package objstore defines a simple, backend-agnostic way of interacting with cloud object storage such as AWS S3.
Callers program against the ObjectStore interface; each backend translates calls into the wire semantics of one
remote protocol and translates responses and failures back into the types of this package.

Limitations and Design Considerations

Locations - objects are addressed by a Path, an opaque slash-separated key. There are no real directories; a
"directory" is emulated by ListWithDelimiter, which groups keys sharing a path segment into common prefixes.

Conditional requests - Get accepts entity-tag and timestamp preconditions plus a half-open byte range. Backends
send only the conditions the caller set and never evaluate them locally.

Multipart uploads - large objects are written through a MultipartWriter, which slices the byte stream into parts
and uploads up to a fixed number of them concurrently. The writer never aborts on its own. A caller that sees an
error from Write or Close must call Abort, otherwise the remote upload is left dangling.

Errors - every backend failure is returned as an *Error naming the store and carrying the original failure as its
cause. The Kind lets callers distinguish a missing object from a failed precondition without inspecting backend
specific types.

Object versions - versions are reported when the backend returns them, but cannot be requested.

Conditional copy - CopyIfNotExists is part of the interface, but backends may report it as NotSupported.
*/
package objstore
