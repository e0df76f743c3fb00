package oracle

// Default prompt templates. Each can be overridden from the [prompts]
// config table; placeholders are positional fmt verbs.

const defaultDecomposePrompt = `You are planning an open-ended investigative research session.

Research question:
%s

Break the question into at most %d independent sub-questions that can each be
researched separately against public data sources. Prefer sub-questions that
cover distinct actors, time periods, or document trails.

Return a JSON object:
{
  "tasks": [
    {"description": "...", "priority": 1}
  ]
}
Priority 1 is most urgent. Return only the JSON object.`

const defaultHypothesesPrompt = `You are generating competing hypotheses about where evidence for a research
task might be found.

Task:
%s

Available sources (id: description):
%s
%s
Propose between 2 and %d hypotheses. Each hypothesis states a distinct angle
on the task and names the subset of source ids most likely to surface
evidence for that angle. Maximize diversity of angles, not coverage of
sources; two hypotheses naming the same sources for the same reason are
worthless.

Return a JSON object:
{
  "hypotheses": [
    {"statement": "...", "candidate_sources": ["source-id", "..."]}
  ]
}
Return only the JSON object.`

const defaultQueryPrompt = `You are writing a search query for one specific data source.

Source: %s
Query syntax constraints: %s

Research task:
%s

Hypothesis being tested:
%s
%s
Return a JSON object whose keys are the query parameters this source
understands, for example {"query": {"terms": "..."}}. Return only the JSON
object with a single top-level key "query".`

const defaultAssessPrompt = `You are judging whether a research task has gathered enough evidence, or
whether specific gaps remain worth another round of searching.

Task:
%s

Objective facts computed by the engine this round (do not recompute them):
%s

Digest of this round's new results:
%s

Decide "continue" only if you can name concrete gaps that another round of
hypotheses could plausibly fill. Decide "stop" when further search would
yield diminishing information.

Return a JSON object:
{
  "decision": "continue" or "stop",
  "assessment": "one short paragraph of qualitative judgement",
  "gaps_identified": ["...", "..."]
}
Return only the JSON object.`

const defaultEntitiesPrompt = `Extract the named entities (people, organizations, places, vessels,
companies, government bodies) from the text below.

Text:
%s

Return a JSON object:
{
  "entities": [
    {"name": "...", "type": "person|organization|place|other", "span": "exact text matched"}
  ]
}
List at most 12 entities. Return only the JSON object.`
