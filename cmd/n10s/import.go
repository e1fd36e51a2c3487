package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/export"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/rdfimport"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/rdfio"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

func addParserFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("format", "", "RDF format (turtle, ntriples, nquads, trig, rdfxml, jsonld); guessed from the location when empty")
	f.Int("commit-size", 0, "Mapped triples per transaction")
	f.Int("node-cache-size", 0, "uri to node id cache entries")
	f.Int("limit", 0, "Stop after this many statements")
	f.String("language-filter", "", "Keep only literals with this language tag")
	f.StringSlice("exclude", nil, "Predicate IRIs to skip")
	f.StringSlice("multival", nil, "Properties stored as arrays under handleMultival=ARRAY")
	f.StringSlice("custom-datatype-props", nil, "Properties that keep custom datatypes")
	f.Bool("verify-uri", true, "Reject statements with malformed IRIs")
	f.Bool("abort-on-error", true, "Stop at the first bad statement")
	f.Bool("strict-types", false, "Drop values that do not match an array's type")
	f.Bool("single-tx", false, "Load the whole document in one transaction")
}

// parserConfig starts from the config file and applies the flags the user
// set explicitly.
func (a *app) parserConfig(cmd *cobra.Command) config.ParserConfig {
	p := a.cfg.Parser
	f := cmd.Flags()
	if f.Changed("commit-size") {
		p.CommitSize, _ = f.GetInt("commit-size")
	}
	if f.Changed("node-cache-size") {
		p.NodeCacheSize, _ = f.GetInt("node-cache-size")
	}
	if f.Changed("limit") {
		p.Limit, _ = f.GetInt("limit")
	}
	if f.Changed("language-filter") {
		p.LanguageFilter, _ = f.GetString("language-filter")
	}
	if f.Changed("exclude") {
		p.PredicateExclusionList, _ = f.GetStringSlice("exclude")
	}
	if f.Changed("multival") {
		p.MultivalPropList, _ = f.GetStringSlice("multival")
	}
	if f.Changed("custom-datatype-props") {
		p.CustomDataTypePropList, _ = f.GetStringSlice("custom-datatype-props")
	}
	if f.Changed("verify-uri") {
		p.VerifyURISyntax, _ = f.GetBool("verify-uri")
	}
	if f.Changed("abort-on-error") {
		p.AbortOnError, _ = f.GetBool("abort-on-error")
	}
	if f.Changed("strict-types") {
		p.StrictDataTypeCheck, _ = f.GetBool("strict-types")
	}
	if f.Changed("single-tx") {
		p.SingleTx, _ = f.GetBool("single-tx")
	}
	return p
}

// openInput opens the document named by location and settles its format.
func openInput(cmd *cobra.Command, location string) (*rdfio.Source, rdfio.Format, error) {
	src, err := rdfio.Open(cmd.Context(), location)
	if err != nil {
		return nil, "", err
	}
	if location == "-" {
		src.ReadCloser = io.NopCloser(cmd.InOrStdin())
	}
	name, _ := cmd.Flags().GetString("format")
	if name == "" {
		if src.Format == "" {
			src.Close()
			return nil, "", fmt.Errorf("cannot guess the RDF format of %s, use --format", src.Name)
		}
		return src, src.Format, nil
	}
	format, err := rdfimport.ParseFormatParam(name)
	if err != nil {
		src.Close()
		return nil, "", err
	}
	return src, format, nil
}

func (a *app) importer(engine storage.Engine) *rdfimport.Importer {
	return rdfimport.NewImporter(engine, rdfimport.Options{
		Logger:   a.log,
		Metrics:  a.metrics,
		Mappings: a.cfg.Mappings,
	})
}

func (a *app) runImport(cmd *cobra.Command, args []string) error {
	src, format, err := openInput(cmd, args[0])
	if err != nil {
		return err
	}
	defer src.Close()

	var r io.Reader = src
	if progress, _ := cmd.Flags().GetBool("progress"); progress {
		bar := progressbar.DefaultBytes(src.Size, "importing")
		defer bar.Finish()
		r = io.TeeReader(src, bar)
	}

	return a.withStore(func(engine storage.Engine) error {
		res, err := a.importer(engine).Import(cmd.Context(), r, format, a.parserConfig(cmd))
		if err := report(cmd.OutOrStdout(), res, err); err != nil {
			return err
		}
		return a.compact(engine)
	})
}

func (a *app) runPreview(cmd *cobra.Command, args []string) error {
	src, format, err := openInput(cmd, args[0])
	if err != nil {
		return err
	}
	defer src.Close()

	return a.withStore(func(engine storage.Engine) error {
		res, graph, err := a.importer(engine).Preview(cmd.Context(), src, format, a.parserConfig(cmd))
		if graph != nil {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(export.ToNeo4jExport(graph.Nodes, graph.Relationships)); err != nil {
				return err
			}
		}
		return report(cmd.ErrOrStderr(), res, err)
	})
}

func (a *app) runValidate(cmd *cobra.Command, args []string) error {
	src, format, err := openInput(cmd, args[0])
	if err != nil {
		return err
	}
	defer src.Close()

	return a.withStore(func(engine storage.Engine) error {
		res, err := a.importer(engine).Validate(cmd.Context(), src, format, a.parserConfig(cmd))
		return report(cmd.OutOrStdout(), res, err)
	})
}

func (a *app) runStream(cmd *cobra.Command, args []string) error {
	src, format, err := openInput(cmd, args[0])
	if err != nil {
		return err
	}
	defer src.Close()

	return withOutput(cmd, func(w io.Writer) error {
		// streaming does not touch the store
		im := rdfimport.NewImporter(storage.NewMemoryEngine(), rdfimport.Options{Logger: a.log, Metrics: a.metrics})
		res, err := im.Stream(cmd.Context(), src, format, a.parserConfig(cmd), w)
		return report(cmd.ErrOrStderr(), res, err)
	})
}

func (a *app) runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	return a.withStore(func(engine storage.Engine) error {
		return withOutput(cmd, func(w io.Writer) error {
			var stats export.Stats
			var err error
			switch format {
			case "ntriples", "nt":
				stats, err = export.NTriples(cmd.Context(), engine, w, export.Options{Logger: a.log})
			case "neo4j-json", "json":
				stats, err = export.Neo4jJSON(cmd.Context(), engine, w)
			default:
				return fmt.Errorf("%w: unknown export format %q", config.ErrInvalidConfig, format)
			}
			if err != nil {
				return err
			}
			a.log.WithFields(log.Fields{
				"nodes":         stats.Nodes,
				"relationships": stats.Relationships,
				"triples":       stats.Triples,
				"skipped":       stats.Skipped,
			}).Info("Export written")
			return nil
		})
	})
}

func (a *app) runStats(cmd *cobra.Command, args []string) error {
	return a.withStore(func(engine storage.Engine) error {
		nodes, err := engine.NodeCount()
		if err != nil {
			return err
		}
		edges, err := engine.EdgeCount()
		if err != nil {
			return err
		}
		resources, err := engine.CountNodesByLabel(rdfimport.ResourceLabel)
		if err != nil {
			return err
		}
		prefixes, err := rdfimport.ListPrefixes(engine)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "📊 Store statistics (%s)\n", a.cfg.Store.Backend)
		fmt.Fprintf(out, "   Nodes:         %d\n", nodes)
		fmt.Fprintf(out, "   Relationships: %d\n", edges)
		fmt.Fprintf(out, "   Resources:     %d\n", resources)
		fmt.Fprintf(out, "   Namespaces:    %d\n", len(prefixes))
		constraints := engine.GetSchema().GetConstraints()
		for i := range constraints {
			c := &constraints[i]
			fmt.Fprintf(out, "   Constraint:    %s on :%s(%s)\n", c.Name, c.Label, c.Property)
		}
		return nil
	})
}

// report prints a result summary. A KO result is an error for the exit code.
func report(w io.Writer, res *rdfimport.Result, err error) error {
	if res == nil {
		return err
	}
	status := "✅"
	if !res.OK() {
		status = "❌"
	}
	fmt.Fprintf(w, "%s %s\n", status, res)
	if res.RunID != "" {
		fmt.Fprintf(w, "   Run:        %s\n", res.RunID)
	}
	for _, p := range sortedKeys(res.Namespaces) {
		fmt.Fprintf(w, "   Namespace:  %s -> %s\n", p, res.Namespaces[p])
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "   ⚠️  %s\n", warning)
	}
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("run %s: %s", res.RunID, res.ExtraInfo)
	}
	return nil
}

// withOutput runs fn with the --output destination.
func withOutput(cmd *cobra.Command, fn func(w io.Writer) error) error {
	path, _ := cmd.Flags().GetString("output")
	if path == "" || path == "-" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = fn(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
