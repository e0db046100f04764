package workspace

import (
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/keypair"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/txn"
)

const (
	manifestName = "Anchor.toml"
	idlDir       = "target/idl"
)

// ErrNotFound is returned by Resolve for programs absent from the registry.
var ErrNotFound = errors.New("program not found in workspace")

// Registry maps program names to deployed program handles, using the
// workspace manifest and the compiled IDLs under target/idl.
type Registry struct {
	root           string
	addresses      map[string]string // manifest [programs.localnet] entries
	providerWallet string
}

// Open loads the registry rooted at path. An empty path walks up from the
// working directory looking for the enclosing repository.
func Open(path string) (*Registry, error) {
	root, err := findRoot(path)
	if err != nil {
		return nil, err
	}
	tree, err := toml.LoadFile(filepath.Join(root, manifestName))
	if err != nil {
		return nil, errors.Wrapf(err, "could not load %s in %s", manifestName, root)
	}

	r := &Registry{root: root, addresses: map[string]string{}}
	if programs, ok := tree.Get("programs.localnet").(*toml.Tree); ok {
		for _, name := range programs.Keys() {
			if addr, ok := programs.Get(name).(string); ok {
				r.addresses[name] = addr
			}
		}
	}
	if wallet, ok := tree.Get("provider.wallet").(string); ok {
		r.providerWallet = wallet
	}
	return r, nil
}

// findRoot resolves the workspace root: an explicit path wins, otherwise
// the enclosing git repository of the working directory is the workspace.
func findRoot(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(filepath.Join(path, manifestName)); err != nil {
			return "", errors.Wrapf(err, "%s is not a workspace", path)
		}
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	repo, err := git.PlainOpenWithOptions(cwd, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", errors.Wrap(err, "could not locate the enclosing workspace repository")
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", errors.Wrap(err, "workspace repository has no worktree")
	}
	root := wt.Filesystem.Root()
	if _, err := os.Stat(filepath.Join(root, manifestName)); err != nil {
		return "", errors.Wrapf(err, "repository root %s is not a workspace", root)
	}
	return root, nil
}

func (r *Registry) Root() string {
	return r.root
}

// ProviderWallet returns the wallet path the manifest's [provider] section
// declares, resolved against the workspace root. Empty when not declared.
func (r *Registry) ProviderWallet() string {
	if r.providerWallet == "" {
		return ""
	}
	if filepath.IsAbs(r.providerWallet) {
		return r.providerWallet
	}
	return filepath.Join(r.root, r.providerWallet)
}

// Programs lists the program names the manifest declares.
func (r *Registry) Programs() []string {
	names := make([]string, 0, len(r.addresses))
	for name := range r.addresses {
		names = append(names, name)
	}
	return names
}

// Resolve returns the handle for a deployed program. The program id comes
// from the manifest, falling back to the address recorded in the IDL
// metadata by the deploy step.
func (r *Registry) Resolve(name string) (*Program, error) {
	idlPath := filepath.Join(r.root, idlDir, name+".json")
	idl, err := loadIDL(idlPath)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(ErrNotFound, "no idl for %q under %s", name, idlDir)
		}
		return nil, err
	}

	address, ok := r.addresses[name]
	if !ok && idl.Metadata != nil {
		address = idl.Metadata.Address
	}
	if address == "" {
		return nil, errors.Wrapf(ErrNotFound, "no deployed address for %q", name)
	}
	id, err := keypair.ParsePublicKey(address)
	if err != nil {
		return nil, errors.Wrapf(err, "program %q has an invalid address", name)
	}
	return &Program{Name: name, ID: id, IDL: idl}, nil
}

// Program is a resolved handle to a deployed program's callable interface.
type Program struct {
	Name string
	ID   keypair.PublicKey
	IDL  IDL
}

// Instruction builds the wire instruction for the named entry point. The
// caller supplies the account metas the entry point declares; args are
// appended to the discriminator pre-encoded.
func (p *Program) Instruction(name string, accounts []txn.AccountMeta, encodedArgs []byte) (txn.Instruction, error) {
	ix, ok := p.IDL.Instruction(name)
	if !ok {
		return txn.Instruction{}, errors.Wrapf(ErrNotFound, "program %q has no instruction %q", p.Name, name)
	}
	if len(accounts) != len(ix.Accounts) {
		return txn.Instruction{}, errors.Errorf(
			"instruction %q wants %d accounts, got %d", name, len(ix.Accounts), len(accounts))
	}
	disc := Discriminator(ix.Name)
	return txn.Instruction{
		ProgramID: p.ID,
		Accounts:  accounts,
		Data:      append(disc[:], encodedArgs...),
	}, nil
}
