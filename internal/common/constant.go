// Package common contains shared constants and sentinel errors used across
// lazyboy components.
package common

const (
	// DesignViewsID is the well-known document holding a database's view set.
	DesignViewsID = "_design/views"

	// DesignViewsName is the design document name used in view query paths
	// ("views/<view>").
	DesignViewsName = "views"

	// DesignViewsType is the language recorded on view sets created at
	// runtime.
	DesignViewsType = "javascript"

	// DefaultHost, DefaultPort and DefaultPrefix are applied when the caller
	// leaves them unset.
	DefaultHost   = "127.0.0.1"
	DefaultPort   = 5984
	DefaultPrefix = "lazy"

	// NameSeparator joins the prefix and the logical database name.
	NameSeparator = "_"
)
