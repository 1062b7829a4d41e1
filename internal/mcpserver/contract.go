package mcpserver

// PrivacyContract describes what happens to a submitted note. LLM clients
// should read it before submitting on a user's behalf.
const PrivacyContract = `# Mindyard Privacy Contract

A submitted note passes through five stages. Only the last two keep anything.

## What is never stored

- The raw note text. It lives in memory for the duration of one run and is
  discarded whether the run succeeds or fails.
- Individual fragments, names, places, contact details, ids or dates.
- Your user id. Stored records carry a keyed one-way reference instead.

## What is stored

- **Insight records**: a short abstracted statement such as
  ` + "`" + `Someone is exploring a career transition` + "`" + `, its topic tags, and an
  embedding vector. Statements never contain proper nouns and never reproduce
  runs of words from the note.
- **Audit entries**: one per fragment, holding a keyed hash of the fragment,
  its sensitivity label (PUBLIC, GENERALIZABLE, REDACT, REJECT) and the transform
  that was applied. Hashes cannot be reversed into text.
- **Submission status**: id, state, attempt count and record count.

## Sensitivity labels

| Label | Meaning |
|---|---|
| PUBLIC | Nothing sensitive detected. |
| GENERALIZABLE | Sensitive topic (health, money, legal, relationships); the claim is abstracted. |
| REDACT | Names or proper nouns were removed before distillation. |
| REJECT | Identifiers, locations, unreadable text, or any detector failure. Never distilled. |

When a detector fails or times out, the fragment is rejected.

## What is shared

Other users see only abstracted statements and topic tags of records that
match their own, together with rationale tags such as ` + "`" + `topic:career-transition` + "`" + `
or ` + "`" + `semantic:high` + "`" + `. Your own records are never matched against each other.

## Corrections

A correction produces new records that supersede the old ones. Superseded
records stop appearing in matches but stay readable for audit.
`
