package migrate

import (
	"reflect"
	"testing"
)

func TestSplitStatementsPlain(t *testing.T) {
	got := splitStatements("create table a (id int);\n\ncreate table b (id int);  \n")
	want := []string{"create table a (id int)", "create table b (id int)"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSplitStatementsKeepsFunctionBodies(t *testing.T) {
	src := `
-- procedures; one per statement
create function f(a int) returns int as $$
begin
  perform 1; -- inner comment survives
  return a;
end;
$$ language plpgsql;

create function g() returns text as $body$ select 'x;y' $body$ language sql;
select $1::int;
`
	got := splitStatements(src)
	if len(got) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(got), got)
	}
	if want := "end;\n$$ language plpgsql"; got[0][len(got[0])-len(want):] != want {
		t.Fatalf("function body truncated: %q", got[0])
	}
	if got[2] != "select $1::int" {
		t.Fatalf("positional parameter mangled: %q", got[2])
	}
}

func TestSplitStatementsQuotesAndComments(t *testing.T) {
	src := `insert into t values ('it''s; fine', "odd;name"); /* a; /* nested; */ b; */ select 2`
	got := splitStatements(src)
	want := []string{`insert into t values ('it''s; fine', "odd;name")`, "select 2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSplitStatementsEmpty(t *testing.T) {
	if got := splitStatements(" ;; -- nothing\n"); len(got) != 0 {
		t.Fatalf("expected no statements, got %q", got)
	}
}
