// Package domain holds the feed item and blacklist value types shared by the
// storage, service and HTTP layers.
//
// Nothing here touches a database or a request. The one piece of logic that
// matters everywhere, turning a permalink into a blacklist identity, lives
// in NormalizePermalink so every layer agrees on it.
package domain
