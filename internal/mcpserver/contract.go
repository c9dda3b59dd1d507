package mcpserver

// WorkflowContract describes how review todos move through their statuses.
// It is served as a resource so assistants can read it before triaging.
const WorkflowContract = `# Review Todo Workflow

Todos are discrete issues found by review checks (fact-check, math, references,
structure, links, figures). Each has a type, a confidence, a derived priority
and a status.

## Statuses

| status | meaning |
|---|---|
| pending | found, nobody has looked at it yet |
| in_progress | someone is working on it |
| fixed | the source was changed to address it |
| rejected | the issue was judged a false positive |
| reviewed | a human confirmed the final state |

## Rules

1. Moves are forward only: pending -> in_progress -> fixed | rejected.
   pending may jump straight to fixed or rejected.
2. Any todo may be marked reviewed.
3. Setting status ` + "`pending`" + ` reopens a fixed, rejected or reviewed todo.
   A todo that is in progress cannot be reopened.
4. Re-running a check never resets the status of an existing todo; the same
   issue on the same line is recognised and not duplicated.

## Priorities

| type | high confidence | medium | low |
|---|---|---|---|
| math | critical | high | medium |
| parameter | high | high | medium |
| reference | high | medium | medium |
| claim | high | medium | medium |
| consistency | high | medium | medium |

## Tools

- ` + "`list_todos`" + ` filters by status, type, priority and file.
- ` + "`update_todo_status`" + ` applies one move and persists the ledger.
- ` + "`stale_files`" + ` lists files a check would process on its next run.
- ` + "`search_content`" + ` finds passages in the book; ` + "`ask_book`" + ` answers from them.
`
