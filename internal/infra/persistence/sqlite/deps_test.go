package sqlite

import (
	"testing"

	"housingcore/testutil"
)

func TestImportsAreDomainMemoryOrStdlib(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.ModuleImportsExcept("housingcore/pkg/domain", "housingcore/internal/infra/persistence/memory"),
		"the sqlite store wraps the memory store")
}
