package joins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Fragment
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "single join without alias",
			input: "JOIN `tag` ON `tag`.`id` = `post`.`tag_id`",
			want: []Fragment{
				{Alias: "tag", Table: "tag", Text: "JOIN `tag` ON `tag`.`id` = `post`.`tag_id`", Offset: 0},
			},
		},
		{
			name:  "explicit alias",
			input: "LEFT JOIN `users` AS `u` ON `u`.`id` = `post`.`user_id`",
			want: []Fragment{
				{Alias: "u", Table: "users", Text: "LEFT JOIN `users` AS `u` ON `u`.`id` = `post`.`user_id`", Offset: 0},
			},
		},
		{
			name:  "bare alias and lowercase keywords",
			input: "  left outer join users u on u.id = p.user_id ",
			want: []Fragment{
				{Alias: "u", Table: "users", Text: "left outer join users u on u.id = p.user_id", Offset: 2},
			},
		},
		{
			name:  "two joins on one line",
			input: "JOIN a ON a.id = t.a_id INNER JOIN b ON b.id = t.b_id",
			want: []Fragment{
				{Alias: "a", Table: "a", Text: "JOIN a ON a.id = t.a_id", Offset: 0},
				{Alias: "b", Table: "b", Text: "INNER JOIN b ON b.id = t.b_id", Offset: 24},
			},
		},
		{
			name:  "joins on separate lines",
			input: "JOIN a ON a.id = t.a_id\n  JOIN \"b\" AS \"bb\" ON bb.id = t.b_id",
			want: []Fragment{
				{Alias: "a", Table: "a", Text: "JOIN a ON a.id = t.a_id", Offset: 0},
				{Alias: "bb", Table: "b", Text: "JOIN \"b\" AS \"bb\" ON bb.id = t.b_id", Offset: 26},
			},
		},
		{
			name:  "keywords inside quoted strings are not terminators",
			input: "JOIN a ON a.name = 'LEFT JOIN b ON x'",
			want: []Fragment{
				{Alias: "a", Table: "a", Text: "JOIN a ON a.name = 'LEFT JOIN b ON x'", Offset: 0},
			},
		},
		{
			name:  "qualified table",
			input: "JOIN `shop`.`item` ON `item`.`id` = o.item_id",
			want: []Fragment{
				{Alias: "shop.item", Table: "shop.item", Text: "JOIN `shop`.`item` ON `item`.`id` = o.item_id", Offset: 0},
			},
		},
		{
			name:  "join without ON is ignored",
			input: "CROSS JOIN numbers",
			want:  nil,
		},
		{
			name:  "backtick table and alias",
			input: "LEFT JOIN `teams` AS `team` ON `team`.`id` = `user`.`team_id`",
			want: []Fragment{
				{Alias: "team", Table: "teams", Text: "LEFT JOIN `teams` AS `team` ON `team`.`id` = `user`.`team_id`", Offset: 0},
			},
		},
		{
			name:  "newline right after ON ends the join",
			input: "JOIN a ON\na.id = 1",
			want:  nil,
		},
		{
			name:  "only one trailing space is excluded",
			input: "JOIN a ON a.id = 1  \nJOIN b ON b.id = 2",
			want: []Fragment{
				{Alias: "a", Table: "a", Text: "JOIN a ON a.id = 1 ", Offset: 0},
				{Alias: "b", Table: "b", Text: "JOIN b ON b.id = 2", Offset: 21},
			},
		},
		{
			name:  "keyword prefix of an identifier",
			input: "JOIN joiner ON joiner.left_id = t.id",
			want: []Fragment{
				{Alias: "joiner", Table: "joiner", Text: "JOIN joiner ON joiner.left_id = t.id", Offset: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scan(tt.input)
			assert.Equal(t, tt.want, got)
			for _, f := range got {
				assert.Equal(t, f.Text, tt.input[f.Offset:f.End()], "offset must index the original input")
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty is identity",
			input: "",
			want:  "",
		},
		{
			name:  "no joins is identity",
			input: "  ",
			want:  "  ",
		},
		{
			name:  "distinct aliases are byte identical",
			input: "JOIN `a` ON `a`.`id` = t.a_id \n LEFT JOIN `b` AS `x` ON x.id = t.b_id\nJOIN `b` AS `y` ON y.id = t.c_id",
			want:  "JOIN `a` ON `a`.`id` = t.a_id \n LEFT JOIN `b` AS `x` ON x.id = t.b_id\nJOIN `b` AS `y` ON y.id = t.c_id",
		},
		{
			name:  "repeated join on the same line",
			input: "JOIN `start` ON `start`.`id` IS NOT NULL JOIN `start` ON `start`.`id` IS NOT NULL",
			want:  "JOIN `start` ON `start`.`id` IS NOT NULL ",
		},
		{
			name:  "repeated joins on separate lines keep the first",
			input: "LEFT JOIN a ON a.id = t.a_id\nJOIN b ON b.id = t.b_id\nLEFT JOIN a ON a.id = t.a_id\nJOIN a ON a.other = 1",
			want:  "LEFT JOIN a ON a.id = t.a_id\nJOIN b ON b.id = t.b_id\n\n",
		},
		{
			name:  "same alias on different tables",
			input: "JOIN a AS x ON x.id = 1\nJOIN b AS x ON x.id = 2",
			want:  "JOIN a AS x ON x.id = 1\n",
		},
		{
			name:  "alias comparison is case sensitive",
			input: "JOIN Tag ON Tag.id = 1\nJOIN tag ON tag.id = 1",
			want:  "JOIN Tag ON Tag.id = 1\nJOIN tag ON tag.id = 1",
		},
		{
			name:  "repeated backtick join with alias",
			input: "LEFT JOIN `teams` AS `team` ON `team`.`id` = `user`.`team_id`\nLEFT JOIN `teams` AS `team` ON `team`.`id` = `user`.`team_id`",
			want:  "LEFT JOIN `teams` AS `team` ON `team`.`id` = `user`.`team_id`\n",
		},
		{
			name:  "quoted and bare spellings resolve to the same alias",
			input: "JOIN `tag` ON `tag`.`id` = 1\nJOIN tag ON tag.id = 1",
			want:  "JOIN `tag` ON `tag`.`id` = 1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dedupe(tt.input))
		})
	}
}

func TestDedupe_KeepsExactlyOneOccurrence(t *testing.T) {
	join := "JOIN `tag` ON `tag`.`id` = `post`.`tag_id`"
	input := join + "\n" + "JOIN `author` ON `author`.`id` = `post`.`author_id`" + "\n" + join + "\n" + join

	got := Dedupe(input)

	fragments := Scan(got)
	require.Len(t, fragments, 2)
	assert.Equal(t, "tag", fragments[0].Alias)
	assert.Equal(t, 0, fragments[0].Offset)
	assert.Equal(t, "author", fragments[1].Alias)
}

func TestDuplicates(t *testing.T) {
	fragments := []Fragment{
		{Alias: "b", Offset: 40, Text: "JOIN b ON 2"},
		{Alias: "a", Offset: 0, Text: "JOIN a ON 1"},
		{Alias: "a", Offset: 20, Text: "JOIN a ON 1"},
		{Alias: "b", Offset: 60, Text: "JOIN b ON 2"},
	}

	dups := Duplicates(fragments)

	require.Len(t, dups, 2)
	assert.Equal(t, 20, dups[0].Offset)
	assert.Equal(t, 60, dups[1].Offset)
}
