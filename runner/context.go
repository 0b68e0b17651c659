package runner

import "github.com/google/uuid"

// ExecutionContext identifies one invocation within a storage root.
// ContextID, ExecutionID and CodeID are opaque strings; callers that
// leave any of them empty get a generated uuid (filled in by New),
// matching the contract that identifiers are caller-optional.
type ExecutionContext struct {
	StorageRoot string
	ContextID   string
	ExecutionID string
	CodeID      string

	// MountFiles are host paths exposed read-write to the child (bound
	// at their own path in container mode). AssetsFiles are host paths
	// exposed read-only as assets.
	MountFiles  []string
	AssetsFiles []string
}

// NewExecutionContext returns a context whose three identifiers are
// each a freshly generated uuid; WithIDs pins specific ones.
func NewExecutionContext(storageRoot string) *ExecutionContext {
	return &ExecutionContext{
		StorageRoot: storageRoot,
		ContextID:   uuid.NewString(),
		ExecutionID: uuid.NewString(),
		CodeID:      uuid.NewString(),
	}
}

// WithIDs lets a caller pin specific identifiers while generating the rest.
func (c *ExecutionContext) WithIDs(contextID, executionID, codeID string) *ExecutionContext {
	if contextID != "" {
		c.ContextID = contextID
	}
	if executionID != "" {
		c.ExecutionID = executionID
	}
	if codeID != "" {
		c.CodeID = codeID
	}
	return c
}

// WithMounts declares the host files exposed to the child: mounts are
// read-write, assets read-only.
func (c *ExecutionContext) WithMounts(mountFiles, assetsFiles []string) *ExecutionContext {
	c.MountFiles = mountFiles
	c.AssetsFiles = assetsFiles
	return c
}
