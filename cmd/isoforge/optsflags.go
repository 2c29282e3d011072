package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/discforge/isoforge/internal/image"
	"github.com/discforge/isoforge/internal/namecodec"
)

// commonOptionFlags mirrors the documented option surface (spec §6.3)
// as a flat set of CLI flags, bound once per command via
// registerCommonFlags and folded into an image.Options by
// toImageOptions. Both "build" and "predict-size" need the exact same
// layout-affecting flags, since predict-size's whole purpose is to
// report the size a later build with the same flags would produce.
type commonOptionFlags struct {
	volumeID       string
	volumeSetID    string
	publisherID    string
	dataPreparerID string
	applicationID  string
	systemID       string

	level         int
	rockRidge     bool
	joliet        bool
	jolietLong    bool
	iso9660v2     bool
	hfsPlus       bool
	hardlinks     bool
	omitVersion   bool
	allowDeep     bool
	lowercase     bool
	fullASCII     bool

	hideNames string

	prepImage  string
	efiImage   string
	appendPart []string
	cylAlign   bool

	gmt bool

	profile string
}

func registerCommonFlags(cmd *cobra.Command) *commonOptionFlags {
	f := &commonOptionFlags{}
	fs := cmd.Flags()

	fs.StringVar(&f.volumeID, "volume-id", "", "volume identifier (up to 32 chars)")
	fs.StringVar(&f.volumeSetID, "volume-set-id", "", "volume set identifier")
	fs.StringVar(&f.publisherID, "publisher-id", "", "publisher identifier")
	fs.StringVar(&f.dataPreparerID, "data-preparer-id", "", "data preparer identifier")
	fs.StringVar(&f.applicationID, "application-id", "", "application identifier")
	fs.StringVar(&f.systemID, "system-id", "", "system identifier")

	fs.IntVar(&f.level, "level", 1, "ECMA-119 interchange level (1-3)")
	fs.BoolVar(&f.rockRidge, "rock-ridge", false, "emit Rock Ridge extensions")
	fs.BoolVar(&f.joliet, "joliet", false, "also emit a Joliet volume descriptor and directory tree")
	fs.BoolVar(&f.jolietLong, "joliet-long-names", false, "allow Joliet names up to 103 characters instead of 64")
	fs.BoolVar(&f.iso9660v2, "iso9660-v2", false, "also emit an ISO 9660:1999 (Enhanced) volume descriptor and tree")
	fs.BoolVar(&f.hfsPlus, "hfs-plus", false, "also emit an HFS+ hybrid volume inside an APM/GPT partition")
	fs.BoolVar(&f.hardlinks, "hardlinks", false, "detect and preserve hard links instead of duplicating content")
	fs.BoolVar(&f.omitVersion, "omit-version", false, "omit the ';1' version suffix from ECMA-119 file identifiers")
	fs.BoolVar(&f.allowDeep, "allow-deep-paths", false, "allow directory nesting beyond ECMA-119's 8-level limit")
	fs.BoolVar(&f.lowercase, "allow-lowercase", false, "relax d-character translation to permit lowercase letters")
	fs.BoolVar(&f.fullASCII, "allow-full-ascii", false, "relax d-character translation to permit the full ASCII set")

	fs.StringVar(&f.hideNames, "hide", "", "comma-separated on-disk names to mark hidden in every view")

	fs.StringVar(&f.prepImage, "prep-image", "", "path to a PReP boot partition image to append")
	fs.StringVar(&f.efiImage, "efi-boot-image", "", "path to an EFI System partition image to append")
	fs.StringArrayVar(&f.appendPart, "append-partition", nil, "path:typecode-hex of an extra partition image to append (repeatable)")
	fs.BoolVar(&f.cylAlign, "cylinder-align", false, "pad the image to a whole number of cylinders")

	fs.BoolVar(&f.gmt, "always-gmt", false, "record all timestamps in GMT regardless of local offset")

	fs.StringVar(&f.profile, "profile", "", "name of a profiles.<name> block in the config file to seed defaults from")

	return f
}

// applyProfile seeds opts from a named profiles.<name> block of the
// loaded config file (spec §6.3's option surface, made reusable across
// invocations the way the teacher's sibling vconvert.fetchRepoConfig
// looks a named entry up out of a viper-loaded map), before any
// explicit CLI flag is applied on top of it.
func applyProfile(opts *image.Options, name string) {
	if name == "" {
		return
	}
	p := viper.Sub("profiles." + name)
	if p == nil {
		return
	}
	if v := p.GetString("volume_id"); v != "" {
		opts.VolumeID = v
	}
	if v := p.GetString("publisher_id"); v != "" {
		opts.PublisherID = v
	}
	if v := p.GetString("application_id"); v != "" {
		opts.ApplicationID = v
	}
	if p.IsSet("joliet") {
		opts.Joliet = p.GetBool("joliet")
	}
	if p.IsSet("hfs_plus") {
		opts.HFSPlus = p.GetBool("hfs_plus")
	}
	if p.IsSet("rock_ridge") {
		opts.RockRidge = p.GetBool("rock_ridge")
	}
	if p.IsSet("iso9660_v2") {
		opts.ISO9660v2 = p.GetBool("iso9660_v2")
	}
	if names := p.GetStringSlice("hide"); len(names) > 0 {
		opts.HideNames = append(opts.HideNames, names...)
	}
}

// toImageOptions seeds an image.Options from the selected --profile (if
// any), then layers explicit CLI flags on top. String flags only
// override the profile's value when actually given; boolean flags here
// can only turn a feature on over the profile's setting, never force
// one off, the usual limit of overlaying flag.Bool on top of a richer
// config source.
func (f *commonOptionFlags) toImageOptions() (image.Options, error) {
	opts := image.DefaultOptions()
	applyProfile(&opts, f.profile)

	if f.volumeID != "" {
		opts.VolumeID = f.volumeID
	}
	if f.volumeSetID != "" {
		opts.VolumeSetID = f.volumeSetID
	}
	if f.publisherID != "" {
		opts.PublisherID = f.publisherID
	}
	if f.dataPreparerID != "" {
		opts.DataPreparerID = f.dataPreparerID
	}
	if f.applicationID != "" {
		opts.ApplicationID = f.applicationID
	}
	if f.systemID != "" {
		opts.SystemID = f.systemID
	}

	opts.Level = namecodec.Level(f.level)
	opts.RockRidge = opts.RockRidge || f.rockRidge
	opts.Joliet = opts.Joliet || f.joliet
	opts.JolietLongNames = f.jolietLong
	opts.ISO9660v2 = opts.ISO9660v2 || f.iso9660v2
	opts.HFSPlus = opts.HFSPlus || f.hfsPlus
	opts.Hardlinks = f.hardlinks
	opts.OmitVersion = f.omitVersion
	opts.AllowDeepPaths = f.allowDeep
	opts.AllowLowercase = f.lowercase
	opts.AllowFullASCII = f.fullASCII
	opts.AlwaysGMT = f.gmt

	if f.hideNames != "" {
		for _, name := range strings.Split(f.hideNames, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				opts.HideNames = append(opts.HideNames, trimmed)
			}
		}
	}

	opts.PRePImagePath = f.prepImage
	opts.EFIBootImagePath = f.efiImage
	opts.CylinderAlign = f.cylAlign

	for _, spec := range f.appendPart {
		ap, err := parseAppendedPartition(spec)
		if err != nil {
			return image.Options{}, err
		}
		opts.AppendedPartitions = append(opts.AppendedPartitions, ap)
	}

	return opts, nil
}

func parseAppendedPartition(spec string) (image.AppendedPartition, error) {
	path, typeHex, found := strings.Cut(spec, ":")
	if !found {
		return image.AppendedPartition{}, errUsage("append-partition %q: want PATH:TYPECODE (e.g. disk.img:83)", spec)
	}
	typeCode, err := parseHexByte(typeHex)
	if err != nil {
		return image.AppendedPartition{}, errUsage("append-partition %q: bad type code: %v", spec, err)
	}
	return image.AppendedPartition{Path: path, TypeCode: typeCode}, nil
}
