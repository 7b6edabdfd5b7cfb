// Package askwarren holds the domain of the Ask Warren investment assistant:
// the analysis produced by the AI oracle, the user's watchlist, the document
// vault records and the market ticker.
//
// The core functionalities include:
//   - Analysis: a Buffett-style company review with grounding sources and
//     financial metric series (revenue, margins, ROIC, stock price).
//   - Watchlist: saved analyses, one per company, newest first, carrying the
//     verdict extracted from the analysis text.
//   - Vault: per-user documents with AI summaries and notes, within a storage quota.
//   - Ticker: a short list of market quotes refreshed periodically.
//
// External collaborators (authentication, document database, object storage and
// the completion API) are reached through narrow interfaces so that the services
// built on this package can be tested without network access.
//
// This package serves as the foundational logic for the `warren` command-line
// tool and its HTTP server.
package askwarren
