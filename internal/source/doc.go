// Package source parses source specifiers into local paths or remote
// repositories and resolves them to a local root, delegating remotes to the
// cache.
//
// Accepted forms:
//
//	./relative/path, /abs/path, ~/path, $VAR/path
//	file:///abs/path
//	git@host:org/repo.git[#ref]
//	https://host/org/repo.git[#ref]
//	ssh://git@host/org/repo.git[#ref]
//	file:///srv/git/repo.git[#ref]   (bare repository, fetched like a remote)
package source
