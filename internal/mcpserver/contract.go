package mcpserver

// CardFormatContract describes how decks, cards and subcards are laid out on
// disk. LLM consumers should read it before creating or editing cards.
const CardFormatContract = `# Planner Card Format Contract

The planner root is a directory. Everything below it is either a deck or a card.

## Decks

- A **deck** is a directory. Its name is the directory name.
- A deck contains other decks and root cards.
- Hidden entries (names starting with ` + "`" + `.` + "`" + `) are ignored.

## Cards

- A **card** is a Markdown file ending in ` + "`" + `.md` + "`" + `. Its name is the file name.
- Files with any other extension are ignored.
- Metadata lives in optional YAML frontmatter between ` + "`" + `---` + "`" + ` fences at the top of the file.

` + "```" + `markdown
---
icon: "🚀"                 # OPTIONAL – shown instead of the default card icon
parent: ../plan.md         # SET BY PLANNER – path of the parent card, relative to this file's directory
subcards:                  # SET BY PLANNER – ordered subcards, relative to this file's directory
  - step-1.md
  - step-2.md
status: doing              # any other key is preserved untouched
---

# Launch
` + "```" + `

## Rules

1. A card **without** ` + "`" + `parent` + "`" + ` is a root card and appears directly in its deck.
2. A card **with** ` + "`" + `parent` + "`" + ` appears only under the card that lists it in ` + "`" + `subcards` + "`" + `.
3. ` + "`" + `subcards` + "`" + ` entries are resolved against the directory of the listing card and
   shown in the listed order. Every entry must point to an existing file.
4. Subcard links must not form a cycle (A lists B, B lists A).
5. Use the ` + "`" + `create_card` + "`" + ` tool to add cards: it picks a free file name
   (` + "`" + `Name.md` + "`" + `, then ` + "`" + `Name-1.md` + "`" + `, ` + "`" + `Name-2.md` + "`" + `, ...) and keeps
   ` + "`" + `parent` + "`" + ` and ` + "`" + `subcards` + "`" + ` consistent on both sides.
6. Deleting a card with subcards needs a strategy: ` + "`" + `cascade` + "`" + ` deletes the whole
   subtree, ` + "`" + `preserve` + "`" + ` keeps the subcards as root cards.
7. After editing files by other means call ` + "`" + `refresh_tree` + "`" + `; the tree is cached.
`
