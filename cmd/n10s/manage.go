package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/rdfimport"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

func (a *app) runInit(cmd *cobra.Command, args []string) error {
	return a.withStore(func(engine storage.Engine) error {
		if err := rdfimport.InitConstraint(engine); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Constraint %s on :%s(%s) ready\n",
			rdfimport.UniqueURIConstraint, rdfimport.ResourceLabel, rdfimport.URIProperty)
		return nil
	})
}

func (a *app) graphConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graphconfig",
		Short: "Manage the stored graph config",
	}

	initCmd := &cobra.Command{
		Use:   "init [key=value...]",
		Short: "Create or replace the graph config from the config file and overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := a.cfg.Graph
			params, err := parseParams(args)
			if err != nil {
				return err
			}
			for _, k := range sortedKeys(params) {
				if err := g.Set(k, params[k]); err != nil {
					return err
				}
			}
			return a.withStore(func(engine storage.Engine) error {
				if err := rdfimport.InitGraphConfig(engine, g); err != nil {
					return err
				}
				return printParams(cmd.OutOrStdout(), g.Params())
			})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set key=value...",
		Short: "Change graph config parameters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args)
			if err != nil {
				return err
			}
			return a.withStore(func(engine storage.Engine) error {
				g, err := rdfimport.SetGraphConfig(engine, params)
				if err != nil {
					return err
				}
				return printParams(cmd.OutOrStdout(), g.Params())
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored graph config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(engine storage.Engine) error {
				params, err := rdfimport.ShowGraphConfig(engine)
				if err != nil {
					return err
				}
				return printParams(cmd.OutOrStdout(), params)
			})
		},
	}

	dropCmd := &cobra.Command{
		Use:   "drop",
		Short: "Remove the stored graph config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(engine storage.Engine) error {
				if err := rdfimport.DropGraphConfig(engine); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Graph config dropped")
				return nil
			})
		},
	}

	cmd.AddCommand(initCmd, setCmd, showCmd, dropCmd)
	return cmd
}

func (a *app) nsPrefixesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nsprefixes",
		Short: "Manage namespace prefix definitions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <prefix> <namespace>",
		Short: "Bind a prefix to a namespace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(engine storage.Engine) error {
				all, err := rdfimport.AddPrefix(engine, args[0], args[1])
				if err != nil {
					return err
				}
				printPrefixes(cmd.OutOrStdout(), all)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <prefix>",
		Short: "Remove a prefix (only before any import)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(engine storage.Engine) error {
				all, err := rdfimport.RemovePrefix(engine, args[0])
				if err != nil {
					return err
				}
				printPrefixes(cmd.OutOrStdout(), all)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "removeAll",
		Short: "Remove every prefix (only before any import)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(rdfimport.RemoveAllPrefixes)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List prefix definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(engine storage.Engine) error {
				all, err := rdfimport.ListPrefixes(engine)
				if err != nil {
					return err
				}
				printPrefixes(cmd.OutOrStdout(), all)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "addFromText <file|->",
		Short: "Add the prefix declarations found in a Turtle, SPARQL or RDF/XML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readAll(cmd, args[0])
			if err != nil {
				return err
			}
			return a.withStore(func(engine storage.Engine) error {
				results, err := rdfimport.AddPrefixesFromText(engine, text)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, r := range results {
					if r.Err != nil {
						fmt.Fprintf(out, "❌ %s: %v\n", r.Prefix, r.Err)
						continue
					}
					fmt.Fprintf(out, "✅ %s: %s\n", r.Prefix, r.Namespace)
				}
				return nil
			})
		},
	})

	return cmd
}

func (a *app) mappingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Manage IRI to element name mappings for MAP mode",
	}

	list := func(cmd *cobra.Command, engine storage.Engine) error {
		mappings, err := rdfimport.ListMappings(engine)
		if err != nil {
			return err
		}
		for _, m := range mappings {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.IRI, m.Name)
		}
		return nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <iri> <name>",
		Short: "Map an IRI to an element name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(engine storage.Engine) error {
				if _, err := rdfimport.AddMapping(engine, args[0], args[1]); err != nil {
					return err
				}
				return list(cmd, engine)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "drop <iri>",
		Short: "Remove the mapping of an IRI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(engine storage.Engine) error {
				return rdfimport.DropMapping(engine, args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "dropAll",
		Short: "Remove every mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(engine storage.Engine) error {
				n, err := rdfimport.DropAllMappings(engine)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d mappings dropped\n", n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(engine storage.Engine) error {
				return list(cmd, engine)
			})
		},
	})

	return cmd
}

// parseParams turns key=value arguments into a parameter map.
func parseParams(args []string) (map[string]any, error) {
	params := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", config.ErrInvalidConfig, arg)
		}
		params[k] = v
	}
	return params, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printParams(w io.Writer, params []config.Param) error {
	for _, p := range params {
		if _, err := fmt.Fprintf(w, "%-24s %v\n", p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func printPrefixes(w io.Writer, all map[string]string) {
	for _, p := range sortedKeys(all) {
		fmt.Fprintf(w, "%s\t%s\n", p, all[p])
	}
}

func readAll(cmd *cobra.Command, path string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	return string(data), err
}
