// Package knowledge implements the retrieval layer of the assistant: the
// offline builder that chunks portfolio content and embeds it into a JSON
// vector store, the in-process store cache, and the cosine-similarity
// ranker used at request time.
package knowledge
