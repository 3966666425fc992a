package main

import (
	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/ochairo/jnirepair/internal/domain-adapters/gateways"
	"github.com/ochairo/jnirepair/internal/domain/entities"
	"github.com/ochairo/jnirepair/internal/domain/interfaces"
	"github.com/ochairo/jnirepair/internal/external-adapters/gpg"
)

// adapters holds the concrete gateways for one profile
type adapters struct {
	elf        *gateways.ELFInspector
	inspector  *gateways.ArchiveInspector
	extractor  *gateways.Extractor
	stripper   *gateways.DependencyStripper
	repackager *gateways.Repackager
	shim       *gateways.ShimInstaller
	downloader *gateways.Downloader
}

func newAdapters(profile *entities.Profile, logger interfaces.Logger) (*adapters, error) {
	elfInspector := gateways.NewELFInspector()
	runner := gateways.NewToolRunner(logger)

	stubs := gateways.NewStubBuilder(runner, elfInspector, gateways.StubConfig{
		StubDir:    profile.Shim.StubDir,
		Compilers:  profile.Shim.Compilers,
		SearchDirs: profile.Shim.SearchDirs,
		Timeout:    profile.Shim.Timeout,
	}, logger)

	a := &adapters{
		elf:        elfInspector,
		inspector:  gateways.NewArchiveInspector(),
		extractor:  gateways.NewExtractor(),
		repackager: gateways.NewRepackager(),
		stripper: gateways.NewDependencyStripper(runner, elfInspector, gateways.StripperConfig{
			Strategies: profile.Strip.Strategies,
			Timeout:    profile.Strip.Timeout,
		}, logger),
		shim: gateways.NewShimInstaller(stubs, profile.Shim.Shell, logger),
	}

	if profile.Acquire.Enabled {
		cfg := gateways.DownloaderConfig{
			URLTemplate:          profile.Acquire.URLTemplate,
			Timeout:              profile.Acquire.Timeout,
			Checksums:            profile.Acquire.SHA256,
			SignatureURLTemplate: profile.Acquire.SignatureURLTemplate,
		}
		if profile.Acquire.SigningKey != "" {
			verifier := gpg.NewVerifier(profile.Acquire.Timeout)
			if err := verifier.ImportKeyFromFile(profile.Acquire.SigningKey); err != nil {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg("cannot load signing key " + profile.Acquire.SigningKey).
					WithCause(err)
			}
			logger.Debug("loaded signing key",
				interfaces.F("path", profile.Acquire.SigningKey),
				interfaces.F("keys", verifier.KeyringSize()))
			cfg.Signatures = verifier
		} else if cfg.SignatureURLTemplate != "" {
			logger.Warn("signature_url_template set without signing_key; signatures are not checked",
				interfaces.F("profile", profile.Name))
		}
		a.downloader = gateways.NewDownloader(cfg, elfInspector, logger)
	}
	return a, nil
}
