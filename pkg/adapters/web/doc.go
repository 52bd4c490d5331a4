// Package web implements the search and fetch capabilities over HTTP.
//
// Searcher queries a SearXNG instance through its JSON API. Fetcher downloads
// a page and reduces its HTML to readable text. FetchTool exposes the fetcher
// to the generator as the fetch_url tool.
package web
